package launch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/hw/actuator"
	"github.com/loicwouters/SDL/internal/logic/geometry"
)

// Options configures a Coordinator. Driver and Plan are required.
type Options struct {
	Driver    actuator.Driver
	Plan      Plan
	MinPower  int   // percent; launches below are rejected
	DutyRange int   // duty units for 100% power, default 255
	Clock     Clock // default RealClock
	Observer  Observer
	Recorder  Recorder
}

// Coordinator runs launch sequences one at a time.
//
// The gate is held only for admission, for Guard callbacks and for the
// final spin down, never across a phase hold. While a sequence runs it
// owns the motor and release channels. The accepted and complete
// notifications are sent under the gate, so a new sequence is never
// reported before the previous one is.
type Coordinator struct {
	gate   sync.Mutex
	state  atomic.Int32
	closed bool
	since  time.Time // accept time of the running sequence
	wg     sync.WaitGroup

	driver    actuator.Driver
	schedule  Schedule
	motors    []actuator.Channel
	minPower  int
	dutyRange int
	clock     Clock
	observer  Observer
	rec       Recorder
}

// New creates an idle Coordinator.
func New(opts Options) *Coordinator {
	if opts.DutyRange <= 0 {
		opts.DutyRange = 255
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Observer == nil {
		opts.Observer = ObserverFunc(func(Event) {})
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Coordinator{
		driver:    opts.Driver,
		schedule:  opts.Plan.Schedule(),
		motors:    append([]actuator.Channel(nil), opts.Plan.Motors...),
		minPower:  opts.MinPower,
		dutyRange: opts.DutyRange,
		clock:     opts.Clock,
		observer:  opts.Observer,
		rec:       opts.Recorder,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Running reports whether a sequence is in progress.
func (c *Coordinator) Running() bool {
	return c.State() == Running
}

// Schedule returns the phase table used for every launch.
func (c *Coordinator) Schedule() Schedule {
	return c.schedule
}

// Start admits a launch at the given power (percent) and returns at once.
// It fails with ErrBusy if a sequence is running, ErrPowerTooLow below
// the minimum power and ErrClosed after Close. A rejection has no side
// effects on the hardware.
func (c *Coordinator) Start(power int) error {
	power = geometry.ClampPercent(power)

	c.gate.Lock()
	switch {
	case c.closed:
		c.gate.Unlock()
		c.rec.LaunchRequested("closed")
		return ErrClosed
	case c.State() == Running:
		c.gate.Unlock()
		c.rec.LaunchRequested("busy")
		return ErrBusy
	case power < c.minPower:
		c.gate.Unlock()
		c.rec.LaunchRequested("power_too_low")
		return fmt.Errorf("%w: %d%% is below %d%%", ErrPowerTooLow, power, c.minPower)
	}
	c.state.Store(int32(Running))
	c.since = c.clock.Now()
	c.wg.Add(1)
	c.rec.LaunchRequested("accepted")
	c.rec.LaunchRunning(true)
	c.observer.LaunchEvent(Event{Kind: EventAccepted, Power: power})
	c.gate.Unlock()

	debug.Info("Launch accepted at %d%% power", power)
	go c.run(power)
	return nil
}

// Guard runs fn under the gate with the current running flag.
// Manual motor commands go through Guard so they can never interleave
// with admission or with the final spin down of a sequence.
func (c *Coordinator) Guard(fn func(running bool)) {
	c.gate.Lock()
	defer c.gate.Unlock()
	fn(c.State() == Running)
}

// IfIdle runs fn under the gate only when no sequence is running and
// reports whether it ran.
func (c *Coordinator) IfIdle(fn func()) bool {
	ran := false
	c.Guard(func(running bool) {
		if !running {
			fn()
			ran = true
		}
	})
	return ran
}

// Wait blocks until no sequence is running.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close rejects further launches and waits for a running sequence to finish.
func (c *Coordinator) Close() {
	c.gate.Lock()
	c.closed = true
	c.gate.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) run(power int) {
	duty := geometry.DutyFromPercent(power, c.dutyRange)
	current := ""
	var fault error

	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("panic: %v", r)
		}
		if fault != nil {
			c.fail(current, power, fault)
		}
		c.observer.LaunchEvent(Event{Kind: EventPhase, Phase: PhaseSpinDown, Power: power})
		c.finish(power, fault)
		c.wg.Done()
	}()

	for _, ph := range c.schedule {
		current = ph.Name
		debug.Launch(ph.Name, ph.Hold)
		c.observer.LaunchEvent(Event{Kind: EventPhase, Phase: ph.Name, Power: power, Hold: ph.Hold})
		if err := ph.Action(c.driver, duty); err != nil {
			fault = fmt.Errorf("phase %s: %w", ph.Name, err)
			return
		}
		c.clock.Sleep(ph.Hold)
	}
}

// finish commands every motor to zero exactly once, reports the outcome
// and returns to Idle, all under the gate.
func (c *Coordinator) finish(power int, fault error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	defer c.state.Store(int32(Idle))

	debug.Launch(PhaseSpinDown, 0)
	var errs []error
	for _, ch := range c.motors {
		if err := c.safeStop(ch); err != nil {
			errs = append(errs, err)
		}
	}
	stopErr := errors.Join(errs...)
	if stopErr != nil {
		c.fail(PhaseSpinDown, power, stopErr)
	}

	elapsed := c.clock.Now().Sub(c.since)
	c.rec.LaunchFinished(elapsed, fault != nil || stopErr != nil)
	c.rec.LaunchRunning(false)
	if fault == nil && stopErr == nil {
		debug.Info("Launch complete in %v", elapsed)
	}
	c.observer.LaunchEvent(Event{Kind: EventComplete, Power: power, Err: errors.Join(fault, stopErr)})
}

func (c *Coordinator) safeStop(ch actuator.Channel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stop %s: panic: %v", ch, r)
		}
	}()
	if err := c.driver.SetPower(ch, 0); err != nil {
		return fmt.Errorf("stop %s: %w", ch, err)
	}
	return nil
}

func (c *Coordinator) fail(phase string, power int, err error) {
	debug.Error(fmt.Errorf("launch sequence: %w", err))
	c.rec.LaunchFault(phase)
	c.observer.LaunchEvent(Event{Kind: EventFault, Phase: phase, Power: power, Err: err})
}

// Remaining returns the time left in the running sequence's schedule,
// or 0 when idle. Clients use it to display a countdown.
func (c *Coordinator) Remaining() time.Duration {
	c.gate.Lock()
	defer c.gate.Unlock()
	if c.State() != Running {
		return 0
	}
	if r := c.schedule.Total() - c.clock.Now().Sub(c.since); r > 0 {
		return r
	}
	return 0
}
