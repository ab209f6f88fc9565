package gpio

import (
	"github.com/loicwouters/SDL/internal/debug"
)

// PinMode indicates how a GPIO is used.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case PWM:
		return "pwm"
	default:
		return "unknown"
	}
}

// PWMClockHz is the clock shared by every hardware PWM pin.
// At 1 MHz one clock tick is one microsecond, so a servo on a 20000-tick
// cycle runs at 50 Hz and its duty is the pulse width in µs, while a motor
// on a 1000-tick cycle runs at 1 kHz.
const PWMClockHz = 1_000_000

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	// SetDutyCycle drives a PWM pin high for duty ticks out of every cycle ticks.
	SetDutyCycle(pin int, duty, cycle uint32) error
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
// Used for development on PC or testing.
type MockDriver struct{}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) SetDutyCycle(pin int, duty, cycle uint32) error {
	debug.GPIO("SetDutyCycle", pin, debug.Fmt("%d/%d", duty, cycle))
	return nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
