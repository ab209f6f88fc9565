package gpio

import (
	"fmt"
	"sync"

	"github.com/loicwouters/SDL/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
// Only the hardware PWM pins (BCM 12, 13, 18, 19) can be put in PWM mode,
// and the two pins of one channel cannot be driven independently, so at
// most two PWM outputs are available.
//
// TODO: add a pigpiod socket backend so a full launcher (aim, release and
// two motors) can run on DMA-timed PWM.
type RPiDriver struct {
	mu       sync.Mutex
	pins     map[int]rpio.Pin
	channels map[int]int // PWM channel -> owning pin
}

// hardwarePWMPins maps BCM pins to their hardware PWM channel.
var hardwarePWMPins = map[int]int{12: 0, 18: 0, 13: 1, 19: 1}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:     make(map[int]rpio.Pin),
		channels: make(map[int]int),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupLocked(pin, mode)
}

func (r *RPiDriver) setupLocked(pin int, mode PinMode) error {
	p := rpio.Pin(pin)

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	case PWM:
		ch, ok := hardwarePWMPins[pin]
		if !ok {
			return fmt.Errorf("pin %d has no hardware PWM", pin)
		}
		if owner, taken := r.channels[ch]; taken && owner != pin {
			return fmt.Errorf("pin %d shares PWM channel %d with pin %d", pin, ch, owner)
		}
		r.channels[ch] = pin
		p.Pwm()
		p.Freq(PWMClockHz)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	r.pins[pin] = p
	return nil
}

func (r *RPiDriver) SetDutyCycle(pin int, duty, cycle uint32) error {
	debug.GPIO("SetDutyCycle", pin, debug.Fmt("%d/%d", duty, cycle))

	if cycle == 0 {
		return fmt.Errorf("pin %d: cycle must be > 0", pin)
	}
	if duty > cycle {
		return fmt.Errorf("pin %d: duty %d exceeds cycle %d", pin, duty, cycle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as PWM
		if err := r.setupLocked(pin, PWM); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	p.DutyCycleWithPwmMode(duty, cycle, rpio.MarkSpace)
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	r.mu.Lock()
	defer r.mu.Unlock()

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
