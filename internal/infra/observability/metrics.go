package observability

import (
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	authResolutions  *prometheus.CounterVec
	sessionsExpired  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zillo_request_duration_seconds",
				Help:    "Duration of backend calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zillo_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zillo_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zillo_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		stageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zillo_login_stage_transitions_total",
				Help: "Login wizard transitions by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		authResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zillo_auth_resolutions_total",
				Help: "Auth operations by the strategy that answered them.",
			},
			[]string{"operation", "source"},
		),
		sessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zillo_sessions_expired_total",
				Help: "Sessions cleared because their expiry passed.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStageTransition counts a wizard transition; outcome is "advance" or
// "reject".
func (m *Metrics) IncrStageTransition(stage, outcome string) {
	m.stageTransitions.WithLabelValues(stage, outcome).Inc()
}

// IncrAuthResolution counts which strategy ("remote" or "local") answered
// an auth operation.
func (m *Metrics) IncrAuthResolution(operation, source string) {
	m.authResolutions.WithLabelValues(operation, source).Inc()
}

// IncrSessionExpired counts an expired session cleanup.
func (m *Metrics) IncrSessionExpired() {
	m.sessionsExpired.Inc()
}

var snapshotStages = []string{"cnpj", "username", "password"}

var snapshotOperations = []string{"identify", "check_user", "authenticate", "recover"}

// GetAuthSnapshot returns a snapshot of login-related metrics suitable for
// the GET /v1/metrics/auth endpoint.
func (m *Metrics) GetAuthSnapshot() *domain.AuthMetrics {
	advances := make(map[string]int64, len(snapshotStages))
	rejects := make(map[string]int64, len(snapshotStages))
	for _, st := range snapshotStages {
		advances[st] = int64(getCounterValue(m.stageTransitions, st, "advance"))
		rejects[st] = int64(getCounterValue(m.stageTransitions, st, "reject"))
	}

	var local, remote float64
	for _, op := range snapshotOperations {
		local += getCounterValue(m.authResolutions, op, "local")
		remote += getCounterValue(m.authResolutions, op, "remote")
	}

	remoteErrors := getCounterValue(m.externalErrors, "supabase") +
		getCounterValue(m.externalErrors, "auth-api")
	hits := getCounterValue(m.cacheHits, "company")
	misses := getCounterValue(m.cacheMisses, "company")

	fallbackRate := float64(0)
	if local+remote > 0 {
		fallbackRate = local / (local + remote)
	}
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	expired := &dto.Metric{}
	var expiredCount int64
	if err := m.sessionsExpired.Write(expired); err == nil && expired.Counter != nil {
		expiredCount = int64(expired.Counter.GetValue())
	}

	return &domain.AuthMetrics{
		StageAdvances:  advances,
		StageRejects:   rejects,
		FallbackUses:   int64(local),
		RemoteErrors:   int64(remoteErrors),
		FallbackRate:   fallbackRate,
		CacheHitRate:   cacheHitRate,
		ExpiredCleared: expiredCount,
		Period:         "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
