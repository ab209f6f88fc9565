package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/loicwouters/SDL/internal/config"
	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/hw/actuator"
	"github.com/loicwouters/SDL/internal/hw/gpio"
	"github.com/loicwouters/SDL/internal/logic/device"
	"github.com/loicwouters/SDL/internal/logic/launch"
	"github.com/loicwouters/SDL/internal/logic/motion"
	"github.com/loicwouters/SDL/internal/metrics"
	"github.com/loicwouters/SDL/internal/web"
)

const defaultWebPort = 5000

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: defaultWebPort}
	flag.Var(webPort, "web", "web server port; -web= for default 5000, -web 8080 for custom port (default: config)")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mock := flag.Bool("mock", false, "force the mock GPIO driver")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyFlags(cfg, *mock, *debugLevel); err != nil {
		log.Fatalf("invalid flag: %v", err)
	}

	if err := run(ctx, cfg, *cfgPath, resolvePort(webPort.port(), cfg.Web.Port)); err != nil {
		log.Fatalf("launcher: %v", err)
	}
}

// run wires the launcher, serves the web UI until ctx is cancelled and
// parks the hardware on the way out.
func run(ctx context.Context, cfg *config.Config, cfgPath string, port int) error {
	broadcaster := web.NewStatusBroadcaster()
	outputs := []io.Writer{os.Stdout, web.BroadcastWriter(broadcaster)}
	if cfg.Logging.File != "" {
		logFile := debug.OpenFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
		defer logFile.Close()
		outputs = append(outputs, logFile)
	}
	debug.SetOutput(io.MultiWriter(outputs...))

	// Initialize debug system
	debug.Init(cfg.Logging.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", cfgPath)
	debug.Value("Debug level", cfg.Logging.DebugLevel)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			debug.Error(fmt.Errorf("closing GPIO driver: %w", err))
		}
	}()

	debug.Step(2, "Configuring servos and motors")
	board, err := newBoard(gpioDriver, cfg)
	if err != nil {
		return fmt.Errorf("init actuators: %w", err)
	}
	debug.PrintStruct("Aim config", cfg.Aim)
	debug.PrintStruct("Motors config", cfg.Motors)

	var collector *metrics.Collector
	if cfg.MetricsEnabled() {
		collector, err = metrics.NewCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
	}

	debug.Step(3, "Creating launch coordinator")
	plan := newPlan(cfg, board.MotorChannels())
	coord := launch.New(launch.Options{
		Driver:    board,
		Plan:      plan,
		MinPower:  cfg.Launch.MinPowerPercent,
		DutyRange: cfg.Motors.DutyRange,
		Observer:  broadcaster,
		Recorder:  launchRecorder(collector),
	})
	debug.Value("Launch schedule", coord.Schedule().Total().String())
	if debug.IsEnabled(debug.LevelVerbose) {
		for i, ph := range coord.Schedule() {
			debug.Verbose("  phase %d: %s, hold %v", i+1, ph.Name, ph.Hold)
		}
	}

	ctrl := device.New(device.Options{
		Aim:             motion.NewController(board, cfg.AimRange(), cfg.Aim.StepUs, cfg.HasTilt()),
		Launcher:        coord,
		Hardware:        board,
		Motors:          plan.Motors,
		DutyRange:       cfg.Motors.DutyRange,
		ReleaseClosedUs: cfg.Release.ClosedPulseUs,
		Recorder:        deviceRecorder(collector),
	})
	defer func() {
		if err := ctrl.Shutdown(); err != nil {
			debug.Error(err)
		}
	}()

	debug.Step(4, "Parking launcher")
	if err := ctrl.Init(); err != nil {
		return fmt.Errorf("park launcher: %w", err)
	}

	var opts []web.Option
	if collector != nil {
		opts = append(opts, web.WithMetrics(cfg.Metrics.Path, collector.Handler()))
	}
	srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, ctrl, newUIConfig(cfg), opts...)
	if err != nil {
		return err
	}
	debug.Summary("Launcher ready")
	return srv.Run(ctx)
}

// newBoard maps configured pins onto actuator channels.
func newBoard(g gpio.Driver, cfg *config.Config) (*actuator.Board, error) {
	servos := map[actuator.Channel]int{
		actuator.Direction: cfg.DirectionServo.Pin,
		actuator.Release:   cfg.Release.Pin,
	}
	if cfg.HasTilt() {
		servos[actuator.Tilt] = cfg.TiltServo.Pin
	}
	motors := make(map[actuator.Channel]int, len(cfg.Motors.Channels))
	for i, m := range cfg.Motors.Channels {
		motors[actuator.MotorChannel(i)] = m.Pin
		debug.Verbose("Motor %s (%s) on pin %d", actuator.MotorChannel(i), m.Name, m.Pin)
	}
	return actuator.NewBoard(g, actuator.Config{
		Servos:      servos,
		Motors:      motors,
		MotorFreqHz: cfg.Motors.PWMFreqHz,
		DutyRange:   cfg.Motors.DutyRange,
	})
}

func newPlan(cfg *config.Config, motors []actuator.Channel) launch.Plan {
	return launch.Plan{
		Motors:          motors,
		ReleaseOpenUs:   cfg.Release.OpenPulseUs,
		ReleaseClosedUs: cfg.Release.ClosedPulseUs,
		SpinUp:          cfg.SpinUp(),
		ReleaseHold:     cfg.ReleaseHold(),
		Eject:           cfg.Eject(),
	}
}

func newUIConfig(cfg *config.Config) web.UIConfig {
	return web.UIConfig{
		StepUs:          cfg.Aim.StepUs,
		MinPulseUs:      cfg.Aim.MinPulseUs,
		CenterPulseUs:   cfg.Aim.CenterPulseUs,
		MaxPulseUs:      cfg.Aim.MaxPulseUs,
		HasTilt:         cfg.HasTilt(),
		MinPowerPercent: cfg.Launch.MinPowerPercent,
		SpinUpMs:        cfg.Launch.SpinUpMs,
		ReleaseMs:       cfg.Launch.ReleaseMs,
		EjectMs:         cfg.Launch.EjectMs,
		VideoURL:        cfg.Web.VideoURL,
	}
}

// launchRecorder and deviceRecorder keep a nil collector from becoming a
// non-nil interface.
func launchRecorder(c *metrics.Collector) launch.Recorder {
	if c == nil {
		return nil
	}
	return c
}

func deviceRecorder(c *metrics.Collector) device.Recorder {
	if c == nil {
		return nil
	}
	return c
}

// applyFlags applies -mock and -debug on top of the loaded config.
// A negative debug level means "use config".
func applyFlags(cfg *config.Config, mock bool, debugLevel int) error {
	if mock {
		cfg.Defaults.MockGPIO = true
	}
	if debugLevel >= 0 {
		if debugLevel > debug.LevelTrace {
			return fmt.Errorf("debug level must be 0-%d, got %d", debug.LevelTrace, debugLevel)
		}
		cfg.Logging.DebugLevel = debugLevel
	}
	return nil
}

// resolvePort prefers the -web flag over the config port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort > 0 {
		return flagPort
	}
	return cfgPort
}

// webPortFlag implements flag.Value for -web: 0 = use config, -web= → default port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
