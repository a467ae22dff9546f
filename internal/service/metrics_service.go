package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// ledger, ceremony and HTTP surfaces.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	awardsApplied    prometheus.Counter
	awardsRevoked    prometheus.Counter
	txRetries        prometheus.Counter
	txExhausted      prometheus.Counter
	questCompletions prometheus.Counter
	ceremoniesOpened *prometheus.CounterVec
	ceremoniesEnded  prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	awardsApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_awards_applied_total",
		Help: "Award operations that changed aggregates",
	})
	awardsRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_awards_revoked_total",
		Help: "Award entries revoked",
	})
	txRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_tx_retries_total",
		Help: "Ledger transactions retried after a serialization conflict",
	})
	txExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_tx_exhausted_total",
		Help: "Ledger transactions that exhausted the retry budget",
	})
	questCompletions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quest_completions_total",
		Help: "Classes crossing their diamond milestone",
	})
	ceremoniesOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ceremony_sessions_opened_total",
		Help: "Ceremony sessions started, by mode",
	}, []string{"mode"})
	ceremoniesEnded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ceremony_sessions_ended_total",
		Help: "Ceremony sessions reaching the ended state",
	})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "standings_cache_hits_total",
		Help: "Standings cache hits",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "standings_cache_misses_total",
		Help: "Standings cache misses",
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		awardsApplied, awardsRevoked, txRetries, txExhausted,
		questCompletions, ceremoniesOpened, ceremoniesEnded,
		cacheHits, cacheMisses,
	)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		awardsApplied:    awardsApplied,
		awardsRevoked:    awardsRevoked,
		txRetries:        txRetries,
		txExhausted:      txExhausted,
		questCompletions: questCompletions,
		ceremoniesOpened: ceremoniesOpened,
		ceremoniesEnded:  ceremoniesEnded,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
	}
}

// Handler exposes the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordAwardApplied counts one aggregate-changing award.
func (s *MetricsService) RecordAwardApplied() { s.awardsApplied.Inc() }

// RecordAwardRevoked counts one revocation.
func (s *MetricsService) RecordAwardRevoked() { s.awardsRevoked.Inc() }

// RecordTxRetry counts one retried ledger transaction attempt.
func (s *MetricsService) RecordTxRetry() { s.txRetries.Inc() }

// RecordTxExhausted counts one retry-budget exhaustion.
func (s *MetricsService) RecordTxExhausted() { s.txExhausted.Inc() }

// RecordQuestCompletion counts one diamond crossing.
func (s *MetricsService) RecordQuestCompletion() { s.questCompletions.Inc() }

// RecordCeremonyOpened counts one started reveal session.
func (s *MetricsService) RecordCeremonyOpened(mode string) {
	s.ceremoniesOpened.WithLabelValues(mode).Inc()
}

// RecordCeremonyEnded counts one finished reveal session.
func (s *MetricsService) RecordCeremonyEnded() { s.ceremoniesEnded.Inc() }

// RecordCacheOperation tracks standings cache hit/miss counts.
func (s *MetricsService) RecordCacheOperation(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}
