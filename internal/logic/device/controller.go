// Package device owns the launcher's shared state: aim position, commanded
// motor power and the launch coordinator. One Controller is built at
// startup and handed to the request handlers.
package device

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/hw/actuator"
	"github.com/loicwouters/SDL/internal/logic/geometry"
	"github.com/loicwouters/SDL/internal/logic/launch"
	"github.com/loicwouters/SDL/internal/logic/motion"
)

// Hardware is the actuator driver plus a way to stop every output.
type Hardware interface {
	actuator.Driver
	Park() error
}

// Recorder receives state changes for metrics.
type Recorder interface {
	AimPositions(p motion.Positions)
	MotorPower(percent int)
}

type nopRecorder struct{}

func (nopRecorder) AimPositions(motion.Positions) {}
func (nopRecorder) MotorPower(int)                {}

// Options wires a Controller. Aim, Launcher and Hardware are required.
type Options struct {
	Aim             *motion.Controller
	Launcher        *launch.Coordinator
	Hardware        Hardware
	Motors          []actuator.Channel
	DutyRange       int
	ReleaseClosedUs int
	Recorder        Recorder
}

// Controller serializes manual control against running launches.
type Controller struct {
	aim      *motion.Controller
	launcher *launch.Coordinator
	hw       Hardware
	motors   []actuator.Channel
	dutyMax  int
	closedUs int
	rec      Recorder

	power atomic.Int32 // percent, always in [0, 100]
}

// Snapshot is the state reported to clients.
type Snapshot struct {
	Positions motion.Positions `json:"positions"`
	Power     int              `json:"power"`
	State     string           `json:"state"`
	Running   bool             `json:"running"`
	// RemainingMs is the time left in a running launch schedule.
	RemainingMs int64 `json:"remaining_ms"`
}

func New(opts Options) *Controller {
	if opts.DutyRange <= 0 {
		opts.DutyRange = 255
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Controller{
		aim:      opts.Aim,
		launcher: opts.Launcher,
		hw:       opts.Hardware,
		motors:   append([]actuator.Channel(nil), opts.Motors...),
		dutyMax:  opts.DutyRange,
		closedUs: opts.ReleaseClosedUs,
		rec:      opts.Recorder,
	}
}

// Init parks the launcher in its start position: aim centered, release
// closed, motors stopped. Every step is attempted.
func (c *Controller) Init() error {
	debug.Section("Initializing launcher")
	pos, err := c.aim.Home()
	c.rec.AimPositions(pos)
	if c.closedUs > 0 {
		if e := c.hw.SetPulse(actuator.Release, c.closedUs); e != nil {
			err = errors.Join(err, fmt.Errorf("close release: %w", e))
		}
	}
	c.launcher.IfIdle(func() {
		err = errors.Join(err, c.stopMotors())
	})
	c.power.Store(0)
	c.rec.MotorPower(0)
	if err == nil {
		debug.Live("Launcher ready: aim %dµs, release closed, motors stopped", pos.Direction)
	}
	return err
}

// RequestAim parses a direction and moves the aim servos.
// Positions are returned even when the driver call fails.
func (c *Controller) RequestAim(direction string) (motion.Positions, error) {
	dir, err := motion.ParseDirection(direction)
	if err != nil {
		return c.aim.Positions(), err
	}
	pos, err := c.aim.Move(dir)
	c.rec.AimPositions(pos)
	return pos, err
}

// RequestPower stores the clamped power and returns it. The motors are
// driven only when no launch is running; a running sequence keeps its
// captured power and the stored value applies to the next launch.
// An error means the value was stored but a motor rejected it.
func (c *Controller) RequestPower(percent int) (int, error) {
	percent = geometry.ClampPercent(percent)
	var err error
	c.launcher.Guard(func(running bool) {
		c.power.Store(int32(percent))
		debug.Power(percent, !running)
		if running {
			return
		}
		duty := geometry.DutyFromPercent(percent, c.dutyMax)
		for _, ch := range c.motors {
			if e := c.hw.SetPower(ch, duty); e != nil {
				err = errors.Join(err, fmt.Errorf("set %s power: %w", ch, e))
			}
		}
	})
	c.rec.MotorPower(percent)
	return percent, err
}

// RequestLaunch starts a launch at the stored power. Rejections are
// launch.ErrBusy and launch.ErrPowerTooLow; see launch.Reason.
func (c *Controller) RequestLaunch() error {
	power := c.Power()
	err := c.launcher.Start(power)
	if err != nil {
		debug.Info("Launch rejected at %d%%: %v", power, err)
	}
	return err
}

// Power returns the stored motor power in percent.
func (c *Controller) Power() int {
	return int(c.power.Load())
}

// Running reports whether a launch is in progress.
func (c *Controller) Running() bool {
	return c.launcher.Running()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	state := c.launcher.State()
	return Snapshot{
		Positions:   c.aim.Positions(),
		Power:       c.Power(),
		State:       state.String(),
		Running:     state == launch.Running,
		RemainingMs: c.launcher.Remaining().Milliseconds(),
	}
}

// Shutdown rejects new launches, waits for a running one to spin down and
// stops every output.
func (c *Controller) Shutdown() error {
	debug.Info("Shutting down: waiting for launcher to be idle")
	c.launcher.Close()
	if err := c.hw.Park(); err != nil {
		return fmt.Errorf("park hardware: %w", err)
	}
	debug.Info("Hardware parked")
	return nil
}

func (c *Controller) stopMotors() error {
	var errs []error
	for _, ch := range c.motors {
		if err := c.hw.SetPower(ch, 0); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
