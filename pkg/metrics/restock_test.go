package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRestockMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRestockMetrics(reg)

	m.ObserveRestock(true)
	m.ObserveRestock(false)
	m.AddFulfillment(3, 1)
	m.ObserveNotification("restock", "sent")
	m.ObserveNotification("restock", "sent")
	m.ObserveNotification("", "skipped")
	m.ObserveNotification("  ", "skipped")
	m.AddExpired(2)

	if got := testutil.ToFloat64(m.restocks.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 successful restock, got %f", got)
	}
	if got := testutil.ToFloat64(m.fulfilled); got != 3 {
		t.Fatalf("expected 3 fulfilled, got %f", got)
	}
	if got := testutil.ToFloat64(m.skipped); got != 1 {
		t.Fatalf("expected 1 skipped, got %f", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("restock", "sent")); got != 2 {
		t.Fatalf("expected 2 sent notifications, got %f", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("unknown", "skipped")); got != 2 {
		t.Fatalf("expected blank kinds to map to unknown, got %f", got)
	}
	if got := testutil.ToFloat64(m.expired); got != 2 {
		t.Fatalf("expected 2 expired schedules, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if family(mfs, "storefront_backorders_fulfilled_total") == nil {
		t.Fatal("expected namespaced fulfillment counter")
	}
}

func TestRestockMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewRestockMetrics(nil)
	m.ObserveRestock(true)
	m.AddFulfillment(1, 1)
	m.ObserveNotification("restock", "sent")
	m.AddExpired(1)

	var nilMetrics *RestockMetrics
	nilMetrics.ObserveRestock(true)
}
