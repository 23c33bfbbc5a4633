package metrics

import (
	"net/http"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MKey string

const (
	Displays         MKey = "displays_total"
	DisplayFailures  MKey = "display_failures_total"
	TokenFetches     MKey = "guest_token_fetches_total"
	TokenCacheHits   MKey = "guest_token_cache_hits_total"
	Activations      MKey = "activations_total"
	Resets           MKey = "resets_total"
	ThemesApplied    MKey = "themes_applied_total"
	ActiveSessions   MKey = "ws_active_sessions"
	EmbeddedSessions MKey = "embedded_sessions"
	PublishedEvents  MKey = "published_events_total"
	DroppedEvents    MKey = "dropped_events_total"
)

const labelFailureKind = "kind"

type MonitoringConf struct {
	Metrics   bool   `json:"metrics" yaml:"metrics"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Path      string `json:"path" yaml:"path"`
}

func (cfg MonitoringConf) Validate() error {
	if !cfg.Metrics {
		return nil
	}
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Namespace, validation.Required),
		validation.Field(&cfg.Path, validation.Required),
	)
}

type collector struct {
	mutex    sync.RWMutex
	registry *prometheus.Registry
	counters map[MKey]prometheus.Counter
	gauges   map[MKey]prometheus.Gauge
	failures *prometheus.CounterVec
}

//nolint:gochecknoglobals
var std = &collector{}

// Init creates the registry and registers every known key. Until it is
// called all updates are no-ops.
func Init(namespace string) {
	std.mutex.Lock()
	defer std.mutex.Unlock()

	std.registry = prometheus.NewRegistry()
	std.counters = map[MKey]prometheus.Counter{}
	std.gauges = map[MKey]prometheus.Gauge{}

	for _, key := range []MKey{Displays, TokenFetches, TokenCacheHits, Activations,
		Resets, ThemesApplied, PublishedEvents, DroppedEvents} {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: string(key)})
		std.registry.MustRegister(c)
		std.counters[key] = c
	}

	for _, key := range []MKey{ActiveSessions, EmbeddedSessions} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: string(key)})
		std.registry.MustRegister(g)
		std.gauges[key] = g
	}

	std.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      string(DisplayFailures),
		Help:      "Failed display attempts by error kind.",
	}, []string{labelFailureKind})
	std.registry.MustRegister(std.failures)
}

func Inc(key MKey) {
	std.mutex.RLock()
	defer std.mutex.RUnlock()

	if c, ok := std.counters[key]; ok {
		c.Inc()
		return
	}
	if g, ok := std.gauges[key]; ok {
		g.Inc()
	}
}

func Dec(key MKey) {
	std.mutex.RLock()
	defer std.mutex.RUnlock()

	if g, ok := std.gauges[key]; ok {
		g.Dec()
	}
}

func IncFailure(kind string) {
	std.mutex.RLock()
	defer std.mutex.RUnlock()

	if std.failures != nil {
		std.failures.WithLabelValues(kind).Inc()
	}
}

// GetMonitoringMux serves the registry on cfg.Path. With metrics disabled it
// answers 404 for everything.
func GetMonitoringMux(cfg MonitoringConf) http.Handler {
	mux := http.NewServeMux()
	if !cfg.Metrics {
		mux.Handle("/", http.NotFoundHandler())
		return mux
	}

	if registry() == nil {
		Init(cfg.Namespace)
	}

	mux.Handle(cfg.Path, promhttp.HandlerFor(registry(), promhttp.HandlerOpts{}))
	return mux
}

func registry() *prometheus.Registry {
	std.mutex.RLock()
	defer std.mutex.RUnlock()
	return std.registry
}
