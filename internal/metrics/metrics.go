// Package metrics counts sign-in, logout and session-purge events.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the session layer reports to
type Recorder interface {
	RecordSignIn(method, outcome string)
	RecordLogout(method, outcome string)
	RecordPurge(reason string)
}

// Outcomes used as label values
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeRedirected = "redirected"
	OutcomeUserAction = "requires_user_action"
)

// Collector records events in Prometheus counters
type Collector struct {
	registry *prometheus.Registry
	signIns  *prometheus.CounterVec
	logouts  *prometheus.CounterVec
	purges   *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resumescan_signins_total",
			Help: "Sign-in attempts by method and outcome",
		}, []string{"method", "outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resumescan_logouts_total",
			Help: "Logouts by method and outcome",
		}, []string{"method", "outcome"}),
		purges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resumescan_session_purges_total",
			Help: "Stored sessions discarded without a user logout",
		}, []string{"reason"}),
	}
	c.registry.MustRegister(c.signIns, c.logouts, c.purges)
	return c
}

// Registry exposes the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordSignIn(method, outcome string) {
	c.signIns.WithLabelValues(method, outcome).Inc()
}

func (c *Collector) RecordLogout(method, outcome string) {
	if method == "" {
		method = "none"
	}
	c.logouts.WithLabelValues(method, outcome).Inc()
}

func (c *Collector) RecordPurge(reason string) {
	c.purges.WithLabelValues(reason).Inc()
}

// WriteTextfile writes the current values in the node exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// Nop discards everything
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordSignIn(string, string) {}
func (Nop) RecordLogout(string, string) {}
func (Nop) RecordPurge(string)          {}
