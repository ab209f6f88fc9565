package launch

import "errors"

// State is the launcher's sequence state.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Rejection reasons. Start wraps them with details; test with errors.Is.
var (
	ErrBusy        = errors.New("launch already in progress")
	ErrPowerTooLow = errors.New("motor power too low")
	ErrClosed      = errors.New("launcher is shutting down")
)

// Reason returns a stable machine-readable code for a Start error,
// or "" if err is not a rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrPowerTooLow):
		return "power_too_low"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return ""
	}
}
