package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace       = "texprefilter"
	MetricsSubsystemFilter = "filter"
	MetricsSubsystemJobs   = "jobs"
	MetricsSubsystemAPI    = "api"
)

type Metrics interface {
	GetRegistry() *prometheus.Registry

	IncrementDocuments()
	IncrementEnvironments(class string)
	IncrementFigures()
	IncrementDroppedRaw(tag string)
	IncrementFilterErrors()

	ObserveJob(status string, elapsed float64)
	ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64)
}

type metrics struct {
	registry *prometheus.Registry

	documentsTotal    prometheus.Counter
	environmentsTotal *prometheus.CounterVec
	figuresTotal      prometheus.Counter
	droppedRawTotal   *prometheus.CounterVec
	filterErrorsTotal prometheus.Counter

	jobTime *prometheus.HistogramVec
	apiTime *prometheus.HistogramVec
}

// NewMetrics creates the prometheus collectors on a fresh registry.
func NewMetrics() Metrics {
	m := &metrics{}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.documentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemFilter,
		Name:      "documents_total",
		Help:      "The total number of documents filtered.",
	})
	m.registry.MustRegister(m.documentsTotal)

	m.environmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemFilter,
		Name:      "environments_total",
		Help:      "The total number of LaTeX environments rewritten.",
	}, []string{"class"})
	m.registry.MustRegister(m.environmentsTotal)

	m.figuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemFilter,
		Name:      "figures_total",
		Help:      "The total number of images resolved.",
	})
	m.registry.MustRegister(m.figuresTotal)

	m.droppedRawTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemFilter,
		Name:      "dropped_raw_total",
		Help:      "The total number of raw nodes removed from output.",
	}, []string{"tag"})
	m.registry.MustRegister(m.droppedRawTotal)

	m.filterErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemFilter,
		Name:      "errors_total",
		Help:      "The total number of filter runs that failed.",
	})
	m.registry.MustRegister(m.filterErrorsTotal)

	m.jobTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemJobs,
		Name:      "time_seconds",
		Help:      "Time to run a conversion job",
	}, []string{"status"})
	m.registry.MustRegister(m.jobTime)

	m.apiTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemAPI,
		Name:      "time_seconds",
		Help:      "Time to execute the api handler",
	}, []string{"handler", "method", "status_code"})
	m.registry.MustRegister(m.apiTime)

	return m
}

func (m *metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metrics) IncrementDocuments() {
	m.documentsTotal.Inc()
}

func (m *metrics) IncrementEnvironments(class string) {
	m.environmentsTotal.With(prometheus.Labels{"class": class}).Inc()
}

func (m *metrics) IncrementFigures() {
	m.figuresTotal.Inc()
}

func (m *metrics) IncrementDroppedRaw(tag string) {
	m.droppedRawTotal.With(prometheus.Labels{"tag": tag}).Inc()
}

func (m *metrics) IncrementFilterErrors() {
	m.filterErrorsTotal.Inc()
}

func (m *metrics) ObserveJob(status string, elapsed float64) {
	m.jobTime.With(prometheus.Labels{"status": status}).Observe(elapsed)
}

func (m *metrics) ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64) {
	m.apiTime.With(prometheus.Labels{"handler": handler, "method": method, "status_code": statusCode}).Observe(elapsed)
}

// NewMetricsHandler exposes the registry of m over HTTP.
func NewMetricsHandler(m Metrics) http.Handler {
	return promhttp.HandlerFor(m.GetRegistry(), promhttp.HandlerOpts{})
}
