package actuator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/hw/gpio"
	"github.com/loicwouters/SDL/internal/logic/geometry"
)

// Channel identifies a physical output of the launcher.
type Channel string

const (
	Direction Channel = "direction" // pan servo
	Tilt      Channel = "tilt"      // optional tilt servo
	Release   Channel = "release"   // ball release servo
	Motor1    Channel = "motor1"
	Motor2    Channel = "motor2"
)

// MotorChannel returns the channel of the i-th motor (0-based).
func MotorChannel(i int) Channel {
	return Channel(fmt.Sprintf("motor%d", i+1))
}

// Driver is the hardware contract used by the launcher logic.
// SetPulse positions a servo (µs, 0 = pulses off); SetPower drives a
// motor with a duty value in the board's duty range.
// Implementations must be safe for concurrent calls on distinct channels.
type Driver interface {
	SetPulse(ch Channel, us int) error
	SetPower(ch Channel, duty int) error
}

// ServoCycle is a 20 ms servo frame in PWM clock ticks (50 Hz).
const ServoCycle = gpio.PWMClockHz / 50

// Config holds the pin mapping of a Board.
type Config struct {
	Servos      map[Channel]int // servo channel -> BCM pin
	Motors      map[Channel]int // motor channel -> BCM pin
	MotorFreqHz int             // motor PWM frequency
	DutyRange   int             // duty units for 100% power
	SafePulse   geometry.PulseRange
}

// Board maps launcher channels onto GPIO PWM pins.
type Board struct {
	gpio       gpio.Driver
	servos     map[Channel]int
	motors     map[Channel]int
	motorCycle uint32
	dutyRange  int
	safe       geometry.PulseRange
}

// NewBoard configures every mapped pin for PWM.
func NewBoard(g gpio.Driver, cfg Config) (*Board, error) {
	if cfg.MotorFreqHz <= 0 || cfg.MotorFreqHz > gpio.PWMClockHz {
		return nil, fmt.Errorf("motor frequency out of range: %d Hz", cfg.MotorFreqHz)
	}
	if cfg.DutyRange <= 0 {
		return nil, fmt.Errorf("duty range must be > 0, got %d", cfg.DutyRange)
	}
	if cfg.SafePulse == (geometry.PulseRange{}) {
		cfg.SafePulse = geometry.DefaultPulseRange
	}

	b := &Board{
		gpio:       g,
		servos:     make(map[Channel]int, len(cfg.Servos)),
		motors:     make(map[Channel]int, len(cfg.Motors)),
		motorCycle: uint32(gpio.PWMClockHz / cfg.MotorFreqHz),
		dutyRange:  cfg.DutyRange,
		safe:       cfg.SafePulse,
	}
	for ch, pin := range cfg.Servos {
		if err := g.SetupPin(pin, gpio.PWM); err != nil {
			return nil, fmt.Errorf("setup servo %s: %w", ch, err)
		}
		b.servos[ch] = pin
	}
	for ch, pin := range cfg.Motors {
		if err := g.SetupPin(pin, gpio.PWM); err != nil {
			return nil, fmt.Errorf("setup motor %s: %w", ch, err)
		}
		b.motors[ch] = pin
	}
	debug.Verbose("Board: %d servos, %d motors, motor cycle %d ticks", len(b.servos), len(b.motors), b.motorCycle)
	return b, nil
}

// SetPulse sets the pulse width of a servo channel. 0 stops the pulses.
func (b *Board) SetPulse(ch Channel, us int) error {
	pin, ok := b.servos[ch]
	if !ok {
		return fmt.Errorf("no servo on channel %s", ch)
	}
	if us != 0 && !b.safe.Contains(us) {
		return fmt.Errorf("servo %s: pulse %dµs outside [%d, %d]", ch, us, b.safe.Min, b.safe.Max)
	}
	return b.gpio.SetDutyCycle(pin, uint32(us), ServoCycle)
}

// SetPower sets the duty of a motor channel, in [0, DutyRange].
func (b *Board) SetPower(ch Channel, duty int) error {
	pin, ok := b.motors[ch]
	if !ok {
		return fmt.Errorf("no motor on channel %s", ch)
	}
	if duty < 0 || duty > b.dutyRange {
		return fmt.Errorf("motor %s: duty %d outside [0, %d]", ch, duty, b.dutyRange)
	}
	return b.gpio.SetDutyCycle(pin, geometry.TicksFromDuty(duty, b.dutyRange, b.motorCycle), b.motorCycle)
}

// MotorChannels returns the mapped motor channels in order.
func (b *Board) MotorChannels() []Channel {
	return sortedChannels(b.motors)
}

// Park stops every motor and servo. All channels are attempted even if one fails.
func (b *Board) Park() error {
	var errs []error
	for _, ch := range sortedChannels(b.motors) {
		if err := b.SetPower(ch, 0); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ch := range sortedChannels(b.servos) {
		if err := b.SetPulse(ch, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedChannels(m map[Channel]int) []Channel {
	out := make([]Channel, 0, len(m))
	for ch := range m {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
