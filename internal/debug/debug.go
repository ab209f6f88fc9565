package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, launch accepted/rejected)
	LevelLive    = 2 // Live info (aim moves, power changes, launch phases)
	LevelVerbose = 3 // Verbose (config details, phase timings)
	LevelTrace   = 4 // Trace (GPIO/PWM, very low level)
)

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger *zerolog.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (startup, launch accepted/rejected)
// 2 = live info (aim moves, power changes, launch phases)
// 3 = verbose (config details, phase timings)
// 4 = trace (GPIO/PWM, very low level)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	rebuild()
}

// SetOutput redirects log output. Lines are written in zerolog's console format.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// OpenFile returns a size-rotated log file writer.
// Combine it with os.Stdout via io.MultiWriter and pass the result to SetOutput.
func OpenFile(path string, maxSizeMB, maxBackups int) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}

// rebuild must be called with mu held.
func rebuild() {
	if level <= LevelOff {
		logger = nil
		return
	}
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	l := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05.000",
		NoColor:    out != os.Stdout,
	}).With().Timestamp().Str("app", "launcher").Logger()
	logger = &l
}

func current(minLevel int) *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if level < minLevel {
		return nil
	}
	return logger
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if l := current(LevelInfo); l != nil {
		l.Info().Msgf(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if l := current(LevelInfo); l != nil {
		l.Info().Msg("═══════════════════════════════════════")
		l.Info().Msgf("  %s", title)
		l.Info().Msg("═══════════════════════════════════════")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if l := current(LevelInfo); l != nil {
		l.Info().Interface(name, value).Msg("")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if l := current(LevelLive); l != nil {
		l.Info().Str("stage", "live").Msgf(format, args...)
	}
}

// Aim prints an aim servo move (level 2).
func Aim(axis string, pulseUs int, direction string) {
	if l := current(LevelLive); l != nil {
		l.Info().Str("axis", axis).Int("pulse_us", pulseUs).Str("direction", direction).Msg("aim moved")
	}
}

// Power prints a motor power change (level 2).
func Power(percent int, forwarded bool) {
	if l := current(LevelLive); l != nil {
		l.Info().Int("percent", percent).Bool("forwarded", forwarded).Msg("motor power set")
	}
}

// Launch prints a launch phase transition (level 2).
func Launch(phase string, hold time.Duration) {
	if l := current(LevelLive); l != nil {
		l.Info().Str("phase", phase).Dur("hold", hold).Msg("launch phase")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if l := current(LevelVerbose); l != nil {
		l.Debug().Msgf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if l := current(LevelVerbose); l != nil {
		l.Debug().Msgf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if l := current(LevelVerbose); l != nil {
		l.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		l.Debug().Msgf("  %s", name)
		l.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if l := current(LevelVerbose); l != nil {
		l.Debug().Int("step", num).Msg(description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if l := current(LevelTrace); l != nil {
		l.Trace().Msgf(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if l := current(LevelTrace); l != nil {
		l.Trace().Str("op", operation).Int("pin", pin).Interface("value", value).Msg("gpio")
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if l := current(LevelInfo); l != nil {
		l.Error().Err(err).Msg("")
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if Level() > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
