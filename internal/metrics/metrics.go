package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
)

const namespace = "gateway"

// Collector records hub traffic counts and host utilisation.
type Collector struct {
	registry *prometheus.Registry

	envelopes       *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	connectorErrors *prometheus.CounterVec
	commands        *prometheus.CounterVec
	utilization     *prometheus.GaugeVec
}

var _ hub.Metrics = (*Collector)(nil)

// New creates a Collector with the Go runtime and process collectors
// registered alongside the gateway metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Inbound records accepted by the hub, by kind.",
		}, []string{"kind"}),

		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound payloads dropped because they could not be decoded, by resource.",
		}, []string{"resource"}),

		connectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_errors_total",
			Help:      "Failed connector calls, by connector and operation.",
		}, []string{"connector", "operation"}),

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_commands_total",
			Help:      "Actuator commands dispatched, by command.",
		}, []string{"command"}),

		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_utilization_ratio",
			Help:      "Latest host utilisation sample in [0,1], by resource.",
		}, []string{"resource"}),
	}

	c.registry.MustRegister(
		c.envelopes,
		c.decodeErrors,
		c.connectorErrors,
		c.commands,
		c.utilization,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// EnvelopeReceived counts one accepted inbound record.
func (c *Collector) EnvelopeReceived(kind envelope.Kind) {
	c.envelopes.WithLabelValues(string(kind)).Inc()
}

// DecodeFailed counts one malformed payload.
func (c *Collector) DecodeFailed(resource envelope.Resource) {
	c.decodeErrors.WithLabelValues(resource.String()).Inc()
}

// ConnectorFailed counts one failed connector call.
func (c *Collector) ConnectorFailed(connector, operation string) {
	c.connectorErrors.WithLabelValues(connector, operation).Inc()
}

// CommandDispatched counts one dispatched actuator command.
func (c *Collector) CommandDispatched(cmd envelope.Command) {
	c.commands.WithLabelValues(cmd.String()).Inc()
}

// ObservePerformance records the three utilisation figures of s.
func (c *Collector) ObservePerformance(s *envelope.PerformanceSample) {
	if s == nil {
		return
	}
	c.utilization.WithLabelValues("cpu").Set(s.CPUUtilization)
	c.utilization.WithLabelValues("memory").Set(s.MemoryUtilization)
	c.utilization.WithLabelValues("disk").Set(s.DiskUtilization)
}

// Registry returns the registry holding every collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
