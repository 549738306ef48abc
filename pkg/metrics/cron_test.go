package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("restock-expiry", 250*time.Millisecond, nil)
	m.ObserveRun("restock-expiry", time.Second, errors.New("sweep failed"))
	m.ObserveRun("", time.Millisecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	runs := family(families, "storefront_cron_job_runs_total")
	require.NotNil(t, runs)
	assert.Equal(t, float64(1), sample(runs, map[string]string{"job": "restock-expiry", "outcome": "success"}).GetCounter().GetValue())
	assert.Equal(t, float64(1), sample(runs, map[string]string{"job": "restock-expiry", "outcome": "failure"}).GetCounter().GetValue())
	assert.Equal(t, float64(1), sample(runs, map[string]string{"job": "unknown", "outcome": "success"}).GetCounter().GetValue())

	hist := sample(family(families, "storefront_cron_job_duration_seconds"), map[string]string{"job": "restock-expiry"})
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
	assert.InDelta(t, 1.25, hist.GetHistogram().GetSampleSum(), 1e-9)

	last := sample(family(families, "storefront_cron_job_last_success_timestamp_seconds"), map[string]string{"job": "restock-expiry"})
	assert.Greater(t, last.GetGauge().GetValue(), float64(0))
}

func TestCronJobMetricsNilIsNoop(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, nil)
	assert.Nil(t, NewCronJobMetrics(nil))
}

func family(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func sample(f *dto.MetricFamily, labels map[string]string) *dto.Metric {
	if f == nil {
		return nil
	}
	for _, m := range f.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if labels[lp.GetName()] == lp.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return m
		}
	}
	return nil
}
