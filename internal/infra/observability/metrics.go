package observability

import (
	"sync/atomic"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	oauthExchanges  *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	simulations     prometheus.Counter
	simulatedItems  *prometheus.CounterVec
	lastSweep       prometheus.Gauge

	lastRefresh atomic.Pointer[domain.RefreshReport]
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
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		oauthExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_oauth_exchanges_total",
				Help: "OAuth callback outcomes by result (success or error code).",
			},
			[]string{"result"},
		),
		tokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_token_refreshes_total",
				Help: "Credential token refreshes by result.",
			},
			[]string{"result"},
		),
		simulations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_mapping_simulations_total",
				Help: "Mapping rule simulations executed.",
			},
		),
		simulatedItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_mapping_items_total",
				Help: "Order items processed by the mapping simulator.",
			},
			[]string{"outcome"},
		),
		lastSweep: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bfa_token_refresh_last_sweep_timestamp_seconds",
				Help: "Unix time of the latest completed token refresh sweep.",
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

// IncrOAuthExchange counts a callback outcome: "success" or an error code.
func (m *Metrics) IncrOAuthExchange(result string) {
	m.oauthExchanges.WithLabelValues(result).Inc()
}

// IncrTokenRefresh counts a refresh outcome: success, error or invalid_grant.
func (m *Metrics) IncrTokenRefresh(result string) {
	m.tokenRefreshes.WithLabelValues(result).Inc()
}

// RecordSimulation counts one simulator run and its item outcomes.
func (m *Metrics) RecordSimulation(matched, unmatched int) {
	m.simulations.Inc()
	m.simulatedItems.WithLabelValues("matched").Add(float64(matched))
	m.simulatedItems.WithLabelValues("unmatched").Add(float64(unmatched))
}

// RecordRefreshSweep keeps the report of a completed refresh sweep.
func (m *Metrics) RecordRefreshSweep(report *domain.RefreshReport) {
	if report == nil {
		return
	}
	cp := *report
	if cp.FinishedAt == nil {
		now := time.Now().UTC()
		cp.FinishedAt = &now
	}
	m.lastRefresh.Store(&cp)
	m.lastSweep.Set(float64(cp.FinishedAt.Unix()))
}

// GetConsoleSnapshot returns a snapshot suitable for GET /v1/metrics/console.
func (m *Metrics) GetConsoleSnapshot() *domain.ConsoleMetrics {
	// Prometheus counters expose cumulative values.
	oauthOK := getCounterValue(m.oauthExchanges, "success")
	oauthTotal := sumCounterVec(m.oauthExchanges)
	refreshOK := getCounterValue(m.tokenRefreshes, "success")
	refreshTotal := sumCounterVec(m.tokenRefreshes)
	matched := getCounterValue(m.simulatedItems, "matched")
	unmatched := getCounterValue(m.simulatedItems, "unmatched")
	cacheHits := getCounterValue(m.cacheHits, "user_profile")
	cacheMisses := getCounterValue(m.cacheMisses, "user_profile")

	oauthRate := float64(0)
	matchRate := float64(0)
	cacheHitRate := float64(0)

	if oauthTotal > 0 {
		oauthRate = oauthOK / oauthTotal
	}
	if matched+unmatched > 0 {
		matchRate = matched / (matched + unmatched)
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	sims := &dto.Metric{}
	_ = m.simulations.Write(sims)

	return &domain.ConsoleMetrics{
		OAuthExchanges:      int64(oauthTotal),
		OAuthFailures:       int64(oauthTotal - oauthOK),
		OAuthSuccessRate:    oauthRate,
		TokenRefreshes:      int64(refreshTotal),
		TokenRefreshFailed:  int64(refreshTotal - refreshOK),
		Simulations:         int64(sims.GetCounter().GetValue()),
		MatchedItems:        int64(matched),
		UnmatchedItems:      int64(unmatched),
		MatchRate:           matchRate,
		ProfileCacheHitRate: cacheHitRate,
		Period:              "all_time",
		LastTokenRefresh:    m.lastRefresh.Load(),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 32)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		total += m.GetCounter().GetValue()
	}
	return total
}
