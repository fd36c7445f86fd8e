// Package metrics records tool call and discovery measurements in Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/i2y/lnbits-mcp/internal/usecase"
)

// Collector implements usecase.Recorder.
type Collector struct {
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	discoveredTools  prometheus.Gauge
	discoveriesTotal *prometheus.CounterVec
}

var _ usecase.Recorder = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls by outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		discoveredTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "discovered_tools",
				Help:      "Number of tools in the registry",
			},
		),
		discoveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discoveries_total",
				Help:      "Total number of tool discoveries by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (c *Collector) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveDiscovery counts the attempt and sets the gauge to the tools currently served.
func (c *Collector) ObserveDiscovery(outcome string, toolCount int) {
	c.discoveriesTotal.WithLabelValues(outcome).Inc()
	c.discoveredTools.Set(float64(toolCount))
}
