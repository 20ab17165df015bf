package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "ok").Inc()
	m.RequestDuration.WithLabelValues("GET").Observe(0.25)
	m.RateLimitSleepsTotal.Inc()
	m.RefreshTotal.WithLabelValues("ok").Inc()
	m.PushItemsTotal.WithLabelValues("ruleset").Inc()
	m.LedgerDirtyRulesets.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{
		"rulectl_requests_total":           false,
		"rulectl_request_duration_seconds": false,
		"rulectl_rate_limit_sleeps_total":  false,
		"rulectl_refresh_total":            false,
		"rulectl_push_items_total":         false,
		"rulectl_ledger_dirty_rulesets":    false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestMetrics_RequestsTotalCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("POST", "ok").Inc()
	m.RequestsTotal.WithLabelValues("POST", "ok").Inc()
	m.RequestsTotal.WithLabelValues("POST", "error").Inc()

	var got dto.Metric
	if err := m.RequestsTotal.WithLabelValues("POST", "ok").Write(&got); err != nil {
		t.Fatal(err)
	}
	if got.Counter.GetValue() != 2 {
		t.Errorf("requests_total{POST,ok} = %f, want 2", got.Counter.GetValue())
	}

	if err := m.RequestsTotal.WithLabelValues("POST", "error").Write(&got); err != nil {
		t.Fatal(err)
	}
	if got.Counter.GetValue() != 1 {
		t.Errorf("requests_total{POST,error} = %f, want 1", got.Counter.GetValue())
	}
}
