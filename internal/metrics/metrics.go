// Package metrics counts license verification, entitlement resolution and
// group sync outcomes.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification kinds.
const (
	KindKey     = "key"
	KindFile    = "file"
	KindWebhook = "webhook"
)

// Metrics defines the counters used by the license service and group sync.
type Metrics interface {
	IncVerification(kind, code string)
	IncOrgTypeResolved(orgType string)
	IncGroupSync(action string)
	IncEntitlementCache(result string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncVerification(string, string) {}
func (Noop) IncOrgTypeResolved(string)      {}
func (Noop) IncGroupSync(string)            {}
func (Noop) IncEntitlementCache(string)     {}

// OrNoop returns m, or Noop when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return Noop{}
	}
	return m
}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	verifications *prometheus.CounterVec
	orgTypes      *prometheus.CounterVec
	groupSync     *prometheus.CounterVec
	cache         *prometheus.CounterVec
	once          sync.Once
}

// NewProm creates the counters and registers them with the default registerer.
func NewProm(namespace string) *Prom {
	p := &Prom{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_verifications_total",
			Help:      "License material verifications by kind and result code",
		}, []string{"kind", "code"}),
		orgTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "org_type_resolutions_total",
			Help:      "Org type resolutions by resulting org type",
		}, []string{"org_type"}),
		groupSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_sync_total",
			Help:      "SSO group sync outcomes by action",
		}, []string{"action"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_cache_total",
			Help:      "Entitlement cache lookups by result",
		}, []string{"result"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.verifications, p.orgTypes, p.groupSync, p.cache)
	})
}

func (p *Prom) IncVerification(kind, code string) {
	p.verifications.WithLabelValues(kind, code).Inc()
}

func (p *Prom) IncOrgTypeResolved(orgType string) {
	p.orgTypes.WithLabelValues(orgType).Inc()
}

func (p *Prom) IncGroupSync(action string) {
	p.groupSync.WithLabelValues(action).Inc()
}

func (p *Prom) IncEntitlementCache(result string) {
	p.cache.WithLabelValues(result).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
