package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "test-job"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cron_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cron_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestWalletMetricsTracksSettlements(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWalletMetrics(reg)

	metrics.ObserveSettlement("purchase", 10000, 40*time.Millisecond)
	metrics.ObserveSettlement("purchase", 2500, 25*time.Millisecond)
	metrics.IncSettlementFailure("subscription")
	metrics.IncInsufficientFunds()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "wallet_settlements_total", "kind", "purchase"); err != nil {
		t.Fatalf("fetch settlements: %v", err)
	} else if got != 2 {
		t.Fatalf("expected settlements=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "wallet_settled_amount_cents_total", "kind", "purchase"); err != nil {
		t.Fatalf("fetch settled amount: %v", err)
	} else if got != 12500 {
		t.Fatalf("expected settled amount 12500, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "wallet_settlement_failures_total", "kind", "subscription"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "wallet_settlement_duration_seconds", "kind", "purchase"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	insufficient := findMetricFamily(mfs, "wallet_insufficient_funds_total")
	if insufficient == nil || len(insufficient.GetMetric()) == 0 {
		t.Fatal("expected insufficient funds counter to be exported")
	}
	if got := insufficient.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected insufficient funds=1, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	cron := NewCronJobMetrics(nil)
	cron.ObserveDuration("job", time.Second)
	cron.IncSuccess("job")
	cron.IncFailure("job")

	wallet := NewWalletMetrics(nil)
	wallet.ObserveSettlement("purchase", 100, time.Second)
	wallet.IncSettlementFailure("purchase")
	wallet.IncInsufficientFunds()
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
