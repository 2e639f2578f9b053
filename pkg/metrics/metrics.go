// Package metrics exports fail point activity to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/testground/failpoint/pkg/failpoint"
	fpsync "github.com/testground/failpoint/pkg/sync"
)

const namespace = "failpoint"

// Collector counts fires and configurations of the fail points of one catalog.
// It is a failpoint.Observer and owns a private prometheus registry.
type Collector struct {
	reg *prometheus.Registry

	fired      *prometheus.CounterVec
	configured *prometheus.CounterVec
}

var _ failpoint.Observer = (*Collector)(nil)

// NewCollector creates a collector. When signals is non-nil the size of its
// active set is exported as a gauge.
func NewCollector(signals *fpsync.Registry) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		reg: reg,
		fired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fired_total",
			Help:      "Total number of evaluations that fired, by fail point",
		}, []string{"name"}),
		configured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configured_total",
			Help:      "Total number of applied configurations, by fail point and mode",
		}, []string{"name", "mode"}),
	}

	if signals != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_signals",
			Help:      "Number of signals currently in the active set",
		}, func() float64 {
			return float64(signals.Len())
		})
	}
	return c
}

// Fired implements failpoint.Observer.
func (c *Collector) Fired(name string) {
	c.fired.WithLabelValues(name).Inc()
}

// Configured implements failpoint.Observer.
func (c *Collector) Configured(name string, mode failpoint.Mode) {
	c.configured.WithLabelValues(name, mode.String()).Inc()
}

// Registry returns the prometheus registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler serves the collector's metrics in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
