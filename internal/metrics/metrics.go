// Package metrics holds the prometheus collectors of the service
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polygonid/launchpad-identity/internal/poller"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

const namespace = "launchpad"

// Metrics is the set of collectors exposed on /metrics
type Metrics struct {
	registry     *prometheus.Registry
	provisioning *prometheus.CounterVec
	pollLoops    *prometheus.CounterVec
	reads        *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// New registers the collectors in a new registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_provisioning_total",
			Help:      "Identity provisioning attempts by outcome",
		}, []string{"outcome"}),
		pollLoops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_poll_loops_total",
			Help:      "Finished claim poll loops by outcome",
		}, []string{"outcome"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_reads_total",
			Help:      "Contract reads by method and decoding path",
		}, []string{"method", "path"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.provisioning,
		m.pollLoops,
		m.reads,
		m.requests,
	)
	return m
}

// ObserveProvisioning counts a provisioning outcome
func (m *Metrics) ObserveProvisioning(outcome string) {
	m.provisioning.WithLabelValues(outcome).Inc()
}

// ObservePollLoop counts a finished poll loop
func (m *Metrics) ObservePollLoop(outcome poller.Outcome) {
	m.pollLoops.WithLabelValues(string(outcome)).Inc()
}

// ObserveRead counts the decoding path used by a contract read
func (m *Metrics) ObserveRead(method string, path eth.ReadPath) {
	m.reads.WithLabelValues(method, string(path)).Inc()
}

// ObserveRequest counts an HTTP request
func (m *Metrics) ObserveRequest(route, code string) {
	m.requests.WithLabelValues(route, code).Inc()
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry of the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
