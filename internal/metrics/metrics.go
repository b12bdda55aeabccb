// Package metrics exposes poller activity as prometheus metrics and keeps
// per-method RPC latency samples for the run report.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "poagov"

// maxSamples bounds the latency samples kept per method.
const maxSamples = 10000

type Metrics struct {
	registry *prometheus.Registry

	rpcCalls      *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	windows       prometheus.Counter
	blocksScanned prometheus.Counter
	lastBlock     prometheus.Gauge
	ballots       *prometheus.CounterVec
	emails        *prometheus.CounterVec

	mu        sync.Mutex
	latencies map[string][]time.Duration
}

// New registers the poller metrics on a fresh registry. Every series carries
// the network name as a constant label.
func New(network string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"network": network}

	return &Metrics{
		registry: reg,
		rpcCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "rpc",
			Name:        "calls_total",
			Help:        "JSON-RPC calls by method and outcome",
			ConstLabels: labels,
		}, []string{"method", "outcome"}),
		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "rpc",
			Name:        "call_duration_seconds",
			Help:        "JSON-RPC call latency in seconds",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			ConstLabels: labels,
		}, []string{"method"}),
		windows: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "windows_scanned_total",
			Help:        "Block windows fully scanned",
			ConstLabels: labels,
		}),
		blocksScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "blocks_scanned_total",
			Help:        "Blocks covered by scanned windows",
			ConstLabels: labels,
		}),
		lastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_scanned_block",
			Help:        "Stop block of the most recently scanned window",
			ConstLabels: labels,
		}),
		ballots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "ballots_total",
			Help:        "Ballots notified by contract kind, version and ballot type",
			ConstLabels: labels,
		}, []string{"kind", "version", "ballot_type"}),
		emails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "emails_total",
			Help:        "Notification emails by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		latencies: make(map[string][]time.Duration),
	}
}

// ObserveCall records one JSON-RPC call.
func (m *Metrics) ObserveCall(method string, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(latency.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	samples := m.latencies[method]
	if len(samples) >= maxSamples {
		samples = samples[1:]
	}
	m.latencies[method] = append(samples, latency)
}

// WindowScanned records a fully processed inclusive block range.
func (m *Metrics) WindowScanned(start, stop uint64) {
	m.windows.Inc()
	m.blocksScanned.Add(float64(stop - start + 1))
	m.lastBlock.Set(float64(stop))
}

// BallotNotified records one delivered ballot notification.
func (m *Metrics) BallotNotified(kind, version, ballotType string) {
	m.ballots.WithLabelValues(kind, version, ballotType).Inc()
}

// EmailSent records the outcome of one email delivery.
func (m *Metrics) EmailSent(err error) {
	if err != nil {
		m.emails.WithLabelValues("error").Inc()
		return
	}
	m.emails.WithLabelValues("ok").Inc()
}

// Latencies summarizes the recorded call latencies per method.
func (m *Metrics) Latencies() map[string]TailLatency {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TailLatency, len(m.latencies))
	for method, samples := range m.latencies {
		out[method] = CalculateTailLatency(samples)
	}
	return out
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
