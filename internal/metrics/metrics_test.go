package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	origReg := prometheus.DefaultRegisterer
	origGather := prometheus.DefaultGatherer
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGather
	})
	return reg
}

func TestNoopMetrics(t *testing.T) {
	m := OrNoop(nil)
	m.IncVerification(KindKey, "VALID")
	m.IncOrgTypeResolved("FREE")
	m.IncGroupSync("created")
	m.IncEntitlementCache("hit")
	assert.IsType(t, Noop{}, m)
}

func TestPromMetrics(t *testing.T) {
	reg := withTestRegistry(t)
	m := NewProm("openstatus")
	m.IncVerification(KindFile, "CLOCK_DRIFT")
	m.IncVerification(KindFile, "CLOCK_DRIFT")
	m.IncOrgTypeResolved("ENTERPRISE")
	m.IncGroupSync("updated")
	m.IncEntitlementCache("miss")

	families, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, counterValue(families, "openstatus_license_verifications_total", map[string]string{"kind": "file", "code": "CLOCK_DRIFT"}))
	assert.Equal(t, 1.0, counterValue(families, "openstatus_org_type_resolutions_total", map[string]string{"org_type": "ENTERPRISE"}))
	assert.Equal(t, 1.0, counterValue(families, "openstatus_group_sync_total", map[string]string{"action": "updated"}))
	assert.Equal(t, 1.0, counterValue(families, "openstatus_entitlement_cache_total", map[string]string{"result": "miss"}))
}

func TestHandler(t *testing.T) {
	withTestRegistry(t)
	NewProm("openstatus").IncGroupSync("created")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "openstatus_group_sync_total"))
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}
