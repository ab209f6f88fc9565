package launch

import (
	"fmt"
	"time"

	"github.com/loicwouters/SDL/internal/hw/actuator"
)

// Phase names, in sequence order. SpinDown always runs last, from the
// cleanup path, and is not part of a Schedule.
const (
	PhaseSpinUp       = "spin_up"
	PhaseReleaseOpen  = "release_open"
	PhaseReleaseClose = "release_close"
	PhaseSpinDown     = "spin_down"
)

// Phase is one timed step: Action runs, then the sequence holds for Hold.
type Phase struct {
	Name   string
	Hold   time.Duration
	Action func(d actuator.Driver, duty int) error
}

// Schedule is the ordered phase table of one launch.
type Schedule []Phase

// Total returns the sum of all holds.
func (s Schedule) Total() time.Duration {
	var total time.Duration
	for _, p := range s {
		total += p.Hold
	}
	return total
}

// Plan describes the launcher hardware and timings a Schedule is built from.
type Plan struct {
	Motors          []actuator.Channel
	ReleaseOpenUs   int
	ReleaseClosedUs int
	SpinUp          time.Duration // motors reach speed before release
	ReleaseHold     time.Duration // release open long enough for one ball
	Eject           time.Duration // motors keep running after release closes
}

// DefaultPlan is the 3 s / 0.5 s / 3 s two-motor sequence.
func DefaultPlan() Plan {
	return Plan{
		Motors:          []actuator.Channel{actuator.Motor1, actuator.Motor2},
		ReleaseOpenUs:   2000,
		ReleaseClosedUs: 1000,
		SpinUp:          3 * time.Second,
		ReleaseHold:     500 * time.Millisecond,
		Eject:           3 * time.Second,
	}
}

// Schedule builds the phase table: spin up, open release, close release.
func (p Plan) Schedule() Schedule {
	motors := append([]actuator.Channel(nil), p.Motors...)
	return Schedule{
		{
			Name: PhaseSpinUp,
			Hold: p.SpinUp,
			Action: func(d actuator.Driver, duty int) error {
				for _, ch := range motors {
					if err := d.SetPower(ch, duty); err != nil {
						return fmt.Errorf("start %s: %w", ch, err)
					}
				}
				return nil
			},
		},
		{
			Name: PhaseReleaseOpen,
			Hold: p.ReleaseHold,
			Action: func(d actuator.Driver, _ int) error {
				return d.SetPulse(actuator.Release, p.ReleaseOpenUs)
			},
		},
		{
			Name: PhaseReleaseClose,
			Hold: p.Eject,
			Action: func(d actuator.Driver, _ int) error {
				return d.SetPulse(actuator.Release, p.ReleaseClosedUs)
			},
		},
	}
}
