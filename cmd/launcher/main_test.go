package main

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/loicwouters/SDL/internal/config"
	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/hw/actuator"
	"github.com/loicwouters/SDL/internal/hw/gpio"
	"github.com/loicwouters/SDL/internal/metrics"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: defaultWebPort}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 5000 {
		t.Errorf("expected default port 5000, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: defaultWebPort}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: defaultWebPort}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- resolvePort / applyFlags ----------

func TestResolvePort(t *testing.T) {
	if got := resolvePort(0, 5000); got != 5000 {
		t.Errorf("resolvePort(0, 5000) = %d, want config port", got)
	}
	if got := resolvePort(8080, 5000); got != 8080 {
		t.Errorf("resolvePort(8080, 5000) = %d, want flag port", got)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := loadShippedConfig(t)
	cfg.Defaults.MockGPIO = false
	cfg.Logging.DebugLevel = 2

	if err := applyFlags(cfg, false, -1); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.Defaults.MockGPIO || cfg.Logging.DebugLevel != 2 {
		t.Errorf("defaults changed config: %+v %+v", cfg.Defaults, cfg.Logging)
	}

	if err := applyFlags(cfg, true, debug.LevelTrace); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if !cfg.Defaults.MockGPIO || cfg.Logging.DebugLevel != debug.LevelTrace {
		t.Errorf("flags not applied: %+v %+v", cfg.Defaults, cfg.Logging)
	}

	if err := applyFlags(cfg, false, 5); err == nil {
		t.Error("debug level 5 should be rejected")
	}
}

// ---------- wiring ----------

func loadShippedConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestShippedConfig_UsesMockGPIO(t *testing.T) {
	cfg := loadShippedConfig(t)
	if !cfg.Defaults.MockGPIO {
		t.Error("shipped pinout shares hardware PWM channels and needs mock_gpio: true")
	}
}

// recordingGPIO records PWM setup and duty writes.
type recordingGPIO struct {
	setup map[int]gpio.PinMode
	duty  map[int][2]uint32
}

func newRecordingGPIO() *recordingGPIO {
	return &recordingGPIO{setup: map[int]gpio.PinMode{}, duty: map[int][2]uint32{}}
}

func (g *recordingGPIO) SetupPin(pin int, mode gpio.PinMode) error {
	g.setup[pin] = mode
	return nil
}

func (g *recordingGPIO) SetDutyCycle(pin int, duty, cycle uint32) error {
	g.duty[pin] = [2]uint32{duty, cycle}
	return nil
}

func (g *recordingGPIO) Close() error { return nil }

func TestNewBoard_ShippedConfig(t *testing.T) {
	cfg := loadShippedConfig(t)
	g := newRecordingGPIO()

	board, err := newBoard(g, cfg)
	if err != nil {
		t.Fatalf("newBoard: %v", err)
	}

	for _, pin := range []int{18, 19, 12, 13} {
		if g.setup[pin] != gpio.PWM {
			t.Errorf("pin %d mode = %v, want pwm", pin, g.setup[pin])
		}
	}
	want := []actuator.Channel{actuator.Motor1, actuator.Motor2}
	if got := board.MotorChannels(); !reflect.DeepEqual(got, want) {
		t.Errorf("MotorChannels = %v, want %v", got, want)
	}

	if err := board.SetPulse(actuator.Release, cfg.Release.OpenPulseUs); err != nil {
		t.Fatalf("SetPulse: %v", err)
	}
	if got := g.duty[19]; got != [2]uint32{2000, actuator.ServoCycle} {
		t.Errorf("release duty = %v, want [2000 %d]", got, actuator.ServoCycle)
	}
	if err := board.SetPulse(actuator.Tilt, 1500); err == nil {
		t.Error("tilt channel should not exist with tilt_servo.pin 0")
	}
}

func TestNewBoard_WithTilt(t *testing.T) {
	cfg := loadShippedConfig(t)
	cfg.TiltServo.Pin = 23
	g := newRecordingGPIO()

	board, err := newBoard(g, cfg)
	if err != nil {
		t.Fatalf("newBoard: %v", err)
	}
	if err := board.SetPulse(actuator.Tilt, 1600); err != nil {
		t.Errorf("SetPulse(tilt): %v", err)
	}
}

func TestNewPlan(t *testing.T) {
	cfg := loadShippedConfig(t)
	motors := []actuator.Channel{actuator.Motor1, actuator.Motor2}

	plan := newPlan(cfg, motors)

	if plan.SpinUp != 3*time.Second || plan.ReleaseHold != 500*time.Millisecond || plan.Eject != 3*time.Second {
		t.Errorf("timings = %v / %v / %v", plan.SpinUp, plan.ReleaseHold, plan.Eject)
	}
	if plan.ReleaseOpenUs != 2000 || plan.ReleaseClosedUs != 1000 {
		t.Errorf("release pulses = %d / %d", plan.ReleaseOpenUs, plan.ReleaseClosedUs)
	}
	if got := plan.Schedule().Total(); got != 6500*time.Millisecond {
		t.Errorf("schedule total = %v, want 6.5s", got)
	}
}

func TestNewUIConfig(t *testing.T) {
	cfg := loadShippedConfig(t)
	cfg.Web.VideoURL = "http://pi.local:8081/"

	ui := newUIConfig(cfg)

	if ui.StepUs != 100 || ui.CenterPulseUs != 1500 || ui.MinPowerPercent != 10 || ui.HasTilt {
		t.Errorf("ui = %+v", ui)
	}
	if ui.VideoURL != "http://pi.local:8081/" {
		t.Errorf("VideoURL = %q", ui.VideoURL)
	}
}

func TestRecorders_NilCollector(t *testing.T) {
	if launchRecorder(nil) != nil {
		t.Error("launchRecorder(nil) should be a nil interface")
	}
	if deviceRecorder(nil) != nil {
		t.Error("deviceRecorder(nil) should be a nil interface")
	}
	c := &metrics.Collector{}
	if launchRecorder(c) == nil || deviceRecorder(c) == nil {
		t.Error("non-nil collector dropped")
	}
}
