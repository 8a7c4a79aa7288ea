package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NoopMetrics discards every observation. Filter runs built without a
// collector use it.
type NoopMetrics struct{}

func NewNoopMetrics() Metrics {
	return &NoopMetrics{}
}

// GetRegistry returns a new empty registry.
func (m *NoopMetrics) GetRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func (m *NoopMetrics) IncrementDocuments()                 {}
func (m *NoopMetrics) IncrementEnvironments(class string)  {}
func (m *NoopMetrics) IncrementFigures()                   {}
func (m *NoopMetrics) IncrementDroppedRaw(tag string)      {}
func (m *NoopMetrics) IncrementFilterErrors()              {}
func (m *NoopMetrics) ObserveJob(status string, e float64) {}

func (m *NoopMetrics) ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64) {
}
