package motion

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/hw/actuator"
	"github.com/loicwouters/SDL/internal/logic/geometry"
)

// Direction is a discrete aim command.
type Direction string

const (
	Left   Direction = "left"
	Right  Direction = "right"
	Up     Direction = "up"
	Down   Direction = "down"
	Center Direction = "center"
)

var (
	ErrUnknownDirection = errors.New("unknown direction")
	ErrNoTiltAxis       = errors.New("no tilt servo fitted")
)

// ParseDirection accepts left, right, up, down and center (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Left, Right, Up, Down, Center:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Positions is the aim state reported to clients.
type Positions struct {
	Direction    int      `json:"direction"`
	DirectionDeg float64  `json:"direction_deg"`
	Tilt         *int     `json:"tilt,omitempty"`
	TiltDeg      *float64 `json:"tilt_deg,omitempty"`
}

// Controller owns the aim servos. It's the layer between request
// handling and the actuator driver for pan/tilt moves.
type Controller struct {
	mu      sync.Mutex
	driver  actuator.Driver
	rng     geometry.PulseRange
	step    int
	hasTilt bool
	pan     int
	tilt    int
}

// NewController starts with every axis at the range center.
// No pulse is sent until Move or Home is called.
func NewController(d actuator.Driver, rng geometry.PulseRange, step int, hasTilt bool) *Controller {
	return &Controller{
		driver:  d,
		rng:     rng,
		step:    step,
		hasTilt: hasTilt,
		pan:     rng.Center,
		tilt:    rng.Center,
	}
}

// HasTilt reports whether up/down moves are available.
func (c *Controller) HasTilt() bool {
	return c.hasTilt
}

// Move applies one aim command and drives the affected servo(s).
// The stored position is updated even if the driver call fails.
func (c *Controller) Move(dir Direction) (Positions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch dir {
	case Left:
		c.pan = c.rng.Step(c.pan, -c.step)
		return c.snapshot(), c.push(actuator.Direction, c.pan, dir)
	case Right:
		c.pan = c.rng.Step(c.pan, c.step)
		return c.snapshot(), c.push(actuator.Direction, c.pan, dir)
	case Up, Down:
		if !c.hasTilt {
			return c.snapshot(), ErrNoTiltAxis
		}
		delta := c.step
		if dir == Down {
			delta = -delta
		}
		c.tilt = c.rng.Step(c.tilt, delta)
		return c.snapshot(), c.push(actuator.Tilt, c.tilt, dir)
	case Center:
		return c.homeLocked()
	default:
		return c.snapshot(), fmt.Errorf("%w: %q", ErrUnknownDirection, string(dir))
	}
}

// Home drives every aim axis to center.
func (c *Controller) Home() (Positions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.homeLocked()
}

func (c *Controller) homeLocked() (Positions, error) {
	c.pan = c.rng.Center
	err := c.push(actuator.Direction, c.pan, Center)
	if c.hasTilt {
		c.tilt = c.rng.Center
		err = errors.Join(err, c.push(actuator.Tilt, c.tilt, Center))
	}
	return c.snapshot(), err
}

// Positions returns the current aim state.
func (c *Controller) Positions() Positions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) push(ch actuator.Channel, us int, dir Direction) error {
	debug.Aim(string(ch), us, string(dir))
	if err := c.driver.SetPulse(ch, us); err != nil {
		return fmt.Errorf("set %s pulse: %w", ch, err)
	}
	return nil
}

func (c *Controller) snapshot() Positions {
	p := Positions{
		Direction:    c.pan,
		DirectionDeg: c.rng.AngleFromPulse(c.pan),
	}
	if c.hasTilt {
		tilt := c.tilt
		deg := c.rng.AngleFromPulse(tilt)
		p.Tilt = &tilt
		p.TiltDeg = &deg
	}
	return p
}
