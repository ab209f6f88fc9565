package geometry

// ClampPercent limits a power value to [0, 100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// DutyFromPercent scales a power percentage onto the driver's duty units
// [0, dutyRange]. The result is truncated, so 50% of 255 gives 127.
func DutyFromPercent(percent, dutyRange int) int {
	return ClampPercent(percent) * dutyRange / 100
}

// TicksFromDuty converts duty units [0, dutyRange] into PWM clock ticks out of cycle.
func TicksFromDuty(duty, dutyRange int, cycle uint32) uint32 {
	if dutyRange <= 0 || duty <= 0 {
		return 0
	}
	if duty > dutyRange {
		duty = dutyRange
	}
	return uint32(uint64(duty) * uint64(cycle) / uint64(dutyRange))
}
