package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loicwouters/SDL/internal/debug"
	"github.com/loicwouters/SDL/internal/logic/device"
	"github.com/loicwouters/SDL/internal/logic/launch"
	"github.com/loicwouters/SDL/internal/logic/motion"
)

// Device is the control surface the handlers drive.
type Device interface {
	RequestAim(direction string) (motion.Positions, error)
	RequestPower(percent int) (int, error)
	RequestLaunch() error
	Snapshot() device.Snapshot
}

// UIConfig holds the values the page needs to render controls (from config).
type UIConfig struct {
	StepUs          int    `json:"step_us"`
	MinPulseUs      int    `json:"min_pulse_us"`
	CenterPulseUs   int    `json:"center_pulse_us"`
	MaxPulseUs      int    `json:"max_pulse_us"`
	HasTilt         bool   `json:"has_tilt"`
	MinPowerPercent int    `json:"min_power_percent"`
	SpinUpMs        int    `json:"spin_up_ms"`
	ReleaseMs       int    `json:"release_ms"`
	EjectMs         int    `json:"eject_ms"`
	VideoURL        string `json:"video_url,omitempty"`
}

// LaunchResponse is the JSON body of /launch.
type LaunchResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Device      Device
	UI          UIConfig
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, dev Device, ui UIConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Device:      dev,
		UI:          ui,
		staticFS:    staticFS,
	}
}

// HandleConfig returns the UI defaults as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.UI)
}

// HandleState returns the current device snapshot as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Device.Snapshot())
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleServo handles GET /servo?direction=left|right|up|down|center.
// A missing direction centers the aim.
func (h *Handlers) HandleServo(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	if strings.TrimSpace(direction) == "" {
		direction = string(motion.Center)
	}
	pos, err := h.Device.RequestAim(direction)
	switch {
	case errors.Is(err, motion.ErrUnknownDirection), errors.Is(err, motion.ErrNoTiltAxis):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		debug.Error(err)
		http.Error(w, "servo fault: "+err.Error(), http.StatusInternalServerError)
		return
	}

	dir := strings.ToLower(strings.TrimSpace(direction))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if (dir == string(motion.Up) || dir == string(motion.Down)) && pos.Tilt != nil {
		fmt.Fprintf(w, "Tilt servo moved: %s, Position: %d", dir, *pos.Tilt)
		return
	}
	fmt.Fprintf(w, "Direction servo moved: %s, Position: %d", dir, pos.Direction)
}

// HandleMotor handles GET /motor?power=N. A missing value means 0.
func (h *Handlers) HandleMotor(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("power"))
	power := 0
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "power must be an integer", http.StatusBadRequest)
			return
		}
		power = v
	}

	applied, err := h.Device.RequestPower(power)
	if err != nil {
		debug.Error(err)
		http.Error(w, "motor fault: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Motor power set to %d%%", applied)
}

// HandleLaunch handles GET and POST /launch. The sequence runs in the
// background; progress is published on the status stream.
func (h *Handlers) HandleLaunch(w http.ResponseWriter, r *http.Request) {
	err := h.Device.RequestLaunch()
	if err == nil {
		writeJSON(w, http.StatusOK, LaunchResponse{Status: "success", Message: "Launch sequence started"})
		return
	}

	resp := LaunchResponse{Status: "error", Reason: launch.Reason(err)}
	code := http.StatusInternalServerError
	switch resp.Reason {
	case "busy":
		code = http.StatusConflict
		resp.Message = "Launch already in progress"
	case "power_too_low":
		code = http.StatusUnprocessableEntity
		resp.Message = "Motor power too low"
	case "closed":
		code = http.StatusServiceUnavailable
		resp.Message = "Launcher is shutting down"
	default:
		resp.Message = err.Error()
	}
	writeJSON(w, code, resp)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
