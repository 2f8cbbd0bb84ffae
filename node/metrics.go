package node

import (
	"errors"
	"time"

	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests         *prometheus.CounterVec
	failedRequests   *prometheus.CounterVec
	requestLatencies *prometheus.HistogramVec
}

var _ jsonrpc.EventListener = (*rpcMetrics)(nil)

// makeRPCMetrics registers per-transport request counters with the default
// registry; duplicate registration across restarts is tolerated.
func makeRPCMetrics(transport string) jsonrpc.EventListener {
	labels := prometheus.Labels{"transport": transport}
	metrics := &rpcMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rpc",
			Subsystem:   "server",
			Name:        "requests",
			ConstLabels: labels,
		}, []string{"method"}),
		failedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rpc",
			Subsystem:   "server",
			Name:        "requests_failed",
			ConstLabels: labels,
		}, []string{"method"}),
		requestLatencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "rpc",
			Subsystem:   "server",
			Name:        "requests_latency",
			ConstLabels: labels,
		}, []string{"method"}),
	}

	for _, collector := range []prometheus.Collector{
		metrics.requests, metrics.failedRequests, metrics.requestLatencies,
	} {
		if err := prometheus.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return metrics
}

func (m *rpcMetrics) OnNewRequest(method string) {
	m.requests.WithLabelValues(method).Inc()
}

func (m *rpcMetrics) OnRequestHandled(method string, took time.Duration) {
	m.requestLatencies.WithLabelValues(method).Observe(took.Seconds())
}

func (m *rpcMetrics) OnRequestFailed(method string, _ any) {
	m.failedRequests.WithLabelValues(method).Inc()
}
