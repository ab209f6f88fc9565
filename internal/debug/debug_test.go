package debug

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func captureOutput(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestLevelOff_NoOutput(t *testing.T) {
	buf := captureOutput(t, LevelOff)

	Info("hidden %d", 1)
	Error(errors.New("hidden"))
	Launch("spin_up", time.Second)

	if buf.Len() != 0 {
		t.Errorf("expected no output at level 0, got %q", buf.String())
	}
}

func TestLevelInfo_FiltersLive(t *testing.T) {
	buf := captureOutput(t, LevelInfo)

	Info("launch accepted at %d%%", 50)
	Live("should not appear")
	Verbose("should not appear either")

	out := buf.String()
	if !strings.Contains(out, "launch accepted at 50%") {
		t.Errorf("info message missing from %q", out)
	}
	if strings.Contains(out, "should not appear") {
		t.Errorf("live/verbose message leaked at level 1: %q", out)
	}
}

func TestLevelLive_DomainHelpers(t *testing.T) {
	buf := captureOutput(t, LevelLive)

	Aim("direction", 1600, "right")
	Power(40, false)
	Launch("release_open", 500*time.Millisecond)

	out := buf.String()
	for _, want := range []string{"aim moved", "1600", "motor power set", "release_open"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestLevelTrace_GPIO(t *testing.T) {
	buf := captureOutput(t, LevelTrace)

	GPIO("SetDutyCycle", 12, 128)

	if !strings.Contains(buf.String(), "gpio") {
		t.Errorf("trace GPIO line missing: %q", buf.String())
	}
}

func TestIsEnabled(t *testing.T) {
	captureOutput(t, LevelVerbose)

	if !IsEnabled(LevelLive) {
		t.Error("level 3 should enable level 2")
	}
	if IsEnabled(LevelTrace) {
		t.Error("level 3 should not enable level 4")
	}
	if Level() != LevelVerbose {
		t.Errorf("Level() = %d, want %d", Level(), LevelVerbose)
	}
}

func TestFmt(t *testing.T) {
	captureOutput(t, LevelOff)
	if got := Fmt("x=%d", 1); got != "" {
		t.Errorf("Fmt at level 0 = %q, want empty", got)
	}
	Init(LevelInfo)
	if got := Fmt("x=%d", 1); got != "x=1" {
		t.Errorf("Fmt at level 1 = %q, want \"x=1\"", got)
	}
}

func TestOpenFile_Writes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.log")
	w := OpenFile(path, 1, 1)
	defer w.Close()

	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("file content = %q, want \"hello\\n\"", data)
	}
}
