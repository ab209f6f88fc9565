// Package metrics exposes launcher state as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loicwouters/SDL/internal/logic/motion"
)

// Collector bundles the launcher metrics. It satisfies launch.Recorder
// and device.Recorder so both layers drive it directly.
type Collector struct {
	gatherer prometheus.Gatherer

	Requests *prometheus.CounterVec
	Faults   *prometheus.CounterVec
	Running  prometheus.Gauge
	Duration prometheus.Histogram
	Aim      *prometheus.GaugeVec
	Power    prometheus.Gauge
}

// NewCollector registers launcher metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_launch_requests_total",
		Help: "Launch requests, labeled by result (accepted, busy, power_too_low, closed).",
	}, []string{"result"}), "launcher_launch_requests_total")
	if err != nil {
		return nil, err
	}
	faults, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_launch_faults_total",
		Help: "Driver faults during launch sequences, labeled by phase.",
	}, []string{"phase"}), "launcher_launch_faults_total")
	if err != nil {
		return nil, err
	}
	running, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "launcher_launch_running",
		Help: "1 while a launch sequence is running.",
	}), "launcher_launch_running")
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "launcher_launch_duration_seconds",
		Help:    "Wall time of launch sequences including spin down.",
		Buckets: []float64{0.5, 1, 2, 4, 6, 6.5, 7, 8, 10, 15},
	}), "launcher_launch_duration_seconds")
	if err != nil {
		return nil, err
	}
	aim, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "launcher_aim_position_microseconds",
		Help: "Current aim servo pulse width, labeled by axis.",
	}, []string{"axis"}), "launcher_aim_position_microseconds")
	if err != nil {
		return nil, err
	}
	power, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "launcher_motor_power_percent",
		Help: "Stored motor power in percent.",
	}), "launcher_motor_power_percent")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer: gatherer,
		Requests: requests,
		Faults:   faults,
		Running:  running,
		Duration: duration,
		Aim:      aim,
		Power:    power,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) LaunchRequested(result string) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(result).Inc()
}

func (c *Collector) LaunchFault(phase string) {
	if c == nil {
		return
	}
	c.Faults.WithLabelValues(phase).Inc()
}

func (c *Collector) LaunchRunning(running bool) {
	if c == nil {
		return
	}
	if running {
		c.Running.Set(1)
	} else {
		c.Running.Set(0)
	}
}

func (c *Collector) LaunchFinished(d time.Duration, _ bool) {
	if c == nil {
		return
	}
	c.Duration.Observe(d.Seconds())
}

func (c *Collector) AimPositions(p motion.Positions) {
	if c == nil {
		return
	}
	c.Aim.WithLabelValues("direction").Set(float64(p.Direction))
	if p.Tilt != nil {
		c.Aim.WithLabelValues("tilt").Set(float64(*p.Tilt))
	}
}

func (c *Collector) MotorPower(percent int) {
	if c == nil {
		return
	}
	c.Power.Set(float64(percent))
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
