// Package observability bundles the Prometheus collectors and OpenTelemetry
// tracing setup shared by the simulator binary and the sweep tooling.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation loop: step
// throughput and the spacecraft state gauges a dashboard watches during a
// run.
type SimCollector struct {
	gatherer prometheus.Gatherer

	StepsTotal   prometheus.Counter
	StepDuration prometheus.Histogram

	AltitudeKm       prometheus.Gauge
	BatterySOC       prometheus.Gauge
	AttitudeErrorDeg prometheus.Gauge
	LinkActive       prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_steps_total",
		Help: "Total number of simulation steps executed.",
	}), "sim_steps_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Wall-clock duration of one simulation step.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	duration, err = registerHistogram(reg, duration, "sim_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	altitude, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sat_altitude_km",
		Help: "Current altitude above the spherical Earth surface in kilometers.",
	}), "sat_altitude_km")
	if err != nil {
		return nil, err
	}
	soc, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sat_battery_soc_percent",
		Help: "Current battery state of charge in percent.",
	}), "sat_battery_soc_percent")
	if err != nil {
		return nil, err
	}
	attErr, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sat_attitude_error_degrees",
		Help: "Current attitude error relative to the target orientation in degrees.",
	}), "sat_attitude_error_degrees")
	if err != nil {
		return nil, err
	}
	link, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sat_link_active",
		Help: "1 when the ground station link is active, 0 otherwise.",
	}), "sat_link_active")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:         gatherer,
		StepsTotal:       steps,
		StepDuration:     duration,
		AltitudeKm:       altitude,
		BatterySOC:       soc,
		AttitudeErrorDeg: attErr,
		LinkActive:       link,
	}, nil
}

// RecordStep counts one completed step and observes its wall-clock duration.
func (c *SimCollector) RecordStep(d time.Duration) {
	if c == nil {
		return
	}
	if c.StepsTotal != nil {
		c.StepsTotal.Inc()
	}
	if c.StepDuration != nil {
		c.StepDuration.Observe(d.Seconds())
	}
}

// SetSpacecraft updates the spacecraft state gauges.
func (c *SimCollector) SetSpacecraft(altitudeKm, batterySOC, attitudeErrDeg float64, linkActive bool) {
	if c == nil {
		return
	}
	if c.AltitudeKm != nil {
		c.AltitudeKm.Set(altitudeKm)
	}
	if c.BatterySOC != nil {
		c.BatterySOC.Set(batterySOC)
	}
	if c.AttitudeErrorDeg != nil {
		c.AttitudeErrorDeg.Set(attitudeErrDeg)
	}
	if c.LinkActive != nil {
		if linkActive {
			c.LinkActive.Set(1)
		} else {
			c.LinkActive.Set(0)
		}
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
