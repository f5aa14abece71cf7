package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCommerceMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCommerceMetrics(reg)
	metrics.ObserveDuration("get_basket", 250*time.Millisecond)
	metrics.IncFailure("get_basket", "status")
	metrics.IncFailure("get_basket", "status")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "commerce_request_failures_total", "kind", "status"); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 2 {
		t.Fatalf("expected failure=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "commerce_request_duration_seconds", "operation", "get_basket"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestBasketMetricsCountsActionsAndSignals(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBasketMetrics(reg)
	metrics.IncAction("remove_item", "rolled_back")
	metrics.IncSignal("duplicate")
	metrics.IncSignal("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "basket_actions_total", "outcome", "rolled_back"); err != nil || got != 1 {
		t.Fatalf("expected rolled_back=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "auth_signals_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f err=%v", got, err)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	NewCommerceMetrics(nil).IncFailure("op", "schema")
	NewBasketMetrics(nil).IncAction("add_item", "ok")
	var nilMetrics *BasketMetrics
	nilMetrics.IncSignal("accepted")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
