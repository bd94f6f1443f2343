package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reason label values for cyber_commands_rejected_total.
const (
	ReasonBadSignature = "signature"
	ReasonCorrupted    = "corrupted"
	ReasonMalformed    = "malformed"
	ReasonNoPublicKey  = "no_public_key"
)

// CyberCollector exposes command-pipeline Prometheus metrics: verification
// outcomes and attack-engine activity.
type CyberCollector struct {
	gatherer prometheus.Gatherer

	CommandsVerified prometheus.Counter
	CommandsRejected *prometheus.CounterVec
	CommandsInjected prometheus.Counter
	CommandsDropped  prometheus.Counter
	AttackActive     prometheus.Gauge
}

// NewCyberCollector registers command-pipeline metrics against the provided
// registerer.
func NewCyberCollector(reg prometheus.Registerer) (*CyberCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	verified, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cyber_commands_verified_total",
		Help: "Commands that passed signature verification.",
	}), "cyber_commands_verified_total")
	if err != nil {
		return nil, err
	}

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cyber_commands_rejected_total",
		Help: "Commands dropped before execution, labeled by rejection reason.",
	}, []string{"reason"})
	rejected, err = registerCounterVec(reg, rejected, "cyber_commands_rejected_total")
	if err != nil {
		return nil, err
	}

	injected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cyber_commands_injected_total",
		Help: "Commands added to the uplink by the attack engine.",
	}), "cyber_commands_injected_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cyber_commands_dropped_total",
		Help: "Commands removed from the uplink by denial-of-service jamming.",
	}), "cyber_commands_dropped_total")
	if err != nil {
		return nil, err
	}

	attackActive, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cyber_attack_active",
		Help: "1 while an attack scenario window is active, 0 otherwise.",
	}), "cyber_attack_active")
	if err != nil {
		return nil, err
	}

	return &CyberCollector{
		gatherer:         gatherer,
		CommandsVerified: verified,
		CommandsRejected: rejected,
		CommandsInjected: injected,
		CommandsDropped:  dropped,
		AttackActive:     attackActive,
	}, nil
}

// IncVerified counts one command that passed verification.
func (c *CyberCollector) IncVerified() {
	if c == nil || c.CommandsVerified == nil {
		return
	}
	c.CommandsVerified.Inc()
}

// IncRejected counts one dropped command under the given reason label.
func (c *CyberCollector) IncRejected(reason string) {
	if c == nil || c.CommandsRejected == nil {
		return
	}
	c.CommandsRejected.WithLabelValues(reason).Inc()
}

// AddInjected counts commands the attack engine added to a batch.
func (c *CyberCollector) AddInjected(n int) {
	if c == nil || c.CommandsInjected == nil || n <= 0 {
		return
	}
	c.CommandsInjected.Add(float64(n))
}

// AddDropped counts commands jamming removed from a batch.
func (c *CyberCollector) AddDropped(n int) {
	if c == nil || c.CommandsDropped == nil || n <= 0 {
		return
	}
	c.CommandsDropped.Add(float64(n))
}

// SetAttackActive flips the attack window gauge.
func (c *CyberCollector) SetAttackActive(active bool) {
	if c == nil || c.AttackActive == nil {
		return
	}
	if active {
		c.AttackActive.Set(1)
	} else {
		c.AttackActive.Set(0)
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CyberCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
