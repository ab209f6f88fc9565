package geometry

// PulseRange bounds a positional actuator, in microseconds of pulse width.
// Center is the neutral position and need not be the midpoint.
type PulseRange struct {
	Min    int
	Center int
	Max    int
}

// DefaultPulseRange is the range of a standard hobby servo.
var DefaultPulseRange = PulseRange{Min: 500, Center: 1500, Max: 2500}

// Clamp limits us to [Min, Max].
func (r PulseRange) Clamp(us int) int {
	if us < r.Min {
		return r.Min
	}
	if us > r.Max {
		return r.Max
	}
	return us
}

// Contains reports whether us lies within the range.
func (r PulseRange) Contains(us int) bool {
	return us >= r.Min && us <= r.Max
}

// Step moves from us by delta and clamps the result.
func (r PulseRange) Step(us, delta int) int {
	return r.Clamp(us + delta)
}

// AngleFromPulse converts a pulse width to an approximate angle in degrees:
// Min maps to -90°, Center to 0° and Max to +90°. Each half is linear.
func (r PulseRange) AngleFromPulse(us int) float64 {
	us = r.Clamp(us)
	switch {
	case us == r.Center:
		return 0
	case us < r.Center:
		if r.Center == r.Min {
			return 0
		}
		return -90.0 * float64(r.Center-us) / float64(r.Center-r.Min)
	default:
		if r.Max == r.Center {
			return 0
		}
		return 90.0 * float64(us-r.Center) / float64(r.Max-r.Center)
	}
}
