// Package metrics exposes Prometheus counters for provider calls, token refreshes and player lifecycle.
//
// A nil [*Recorder] is valid and records nothing, so packages can take one without forcing tests to build a registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vinyl"

// Recorder holds the application's collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	APIRequests      *prometheus.CounterVec
	TokenRefreshes   *prometheus.CounterVec
	PlayerInits      *prometheus.CounterVec
	PlayerEvents     *prometheus.CounterVec
	SuppressedFaults *prometheus.CounterVec
	InitDuration     prometheus.Histogram
	PlayerReady      prometheus.Gauge
}

// New creates a [Recorder] with all collectors registered on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Provider Web API requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Token refresh attempts by result",
			},
			[]string{"result"},
		),
		PlayerInits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_initializations_total",
				Help:      "Player initialization outcomes",
			},
			[]string{"result"},
		),
		PlayerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_events_total",
				Help:      "Player lifecycle events by type",
			},
			[]string{"type"},
		),
		SuppressedFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suppressed_faults_total",
				Help:      "Failures on non-critical endpoints that were swallowed",
			},
			[]string{"endpoint"},
		),
		InitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "player_initialization_seconds",
				Help:      "Time from client construction to the first decisive event",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
		),
		PlayerReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "player_ready",
				Help:      "1 while a player device is ready",
			},
		),
	}

	r.registry.MustRegister(
		r.APIRequests,
		r.TokenRefreshes,
		r.PlayerInits,
		r.PlayerEvents,
		r.SuppressedFaults,
		r.InitDuration,
		r.PlayerReady,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveAPI counts one provider request. A zero code means the request never got a response.
func (r *Recorder) ObserveAPI(endpoint string, code int) {
	if r == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	r.APIRequests.WithLabelValues(endpoint, label).Inc()
}

func (r *Recorder) ObserveRefresh(err error) {
	if r == nil {
		return
	}
	r.TokenRefreshes.WithLabelValues(result(err)).Inc()
}

// ObserveInit records an initialization outcome and its duration in seconds.
func (r *Recorder) ObserveInit(outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.PlayerInits.WithLabelValues(outcome).Inc()
	r.InitDuration.Observe(seconds)
}

func (r *Recorder) ObserveEvent(eventType string) {
	if r == nil {
		return
	}
	r.PlayerEvents.WithLabelValues(eventType).Inc()
}

func (r *Recorder) ObserveSuppressed(endpoint string) {
	if r == nil {
		return
	}
	r.SuppressedFaults.WithLabelValues(endpoint).Inc()
}

func (r *Recorder) SetReady(ready bool) {
	if r == nil {
		return
	}
	if ready {
		r.PlayerReady.Set(1)
	} else {
		r.PlayerReady.Set(0)
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
