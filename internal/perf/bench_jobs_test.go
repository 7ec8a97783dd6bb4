package perf

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/rentroll/internal/jobs"
	"github.com/odyssey-erp/rentroll/internal/rent"
	rentsqlite "github.com/odyssey-erp/rentroll/internal/rent/sqlite"
	"github.com/odyssey-erp/rentroll/jobs"
)

const perfTenants = 500

func seededStore(tb testing.TB) *rentsqlite.Store {
	tb.Helper()
	store, err := rentsqlite.Open(filepath.Join(tb.TempDir(), "perf.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = store.Close() })

	tx, err := store.DB().Begin()
	require.NoError(tb, err)
	_, err = tx.Exec(`INSERT INTO properties (id, property_name) VALUES (1, 'Green Park')`)
	require.NoError(tb, err)
	for i := 1; i <= perfTenants; i++ {
		_, err = tx.Exec(`INSERT INTO units (id, property_id, unit_name) VALUES (?, 1, ?)`, i, fmt.Sprintf("U-%03d", i))
		require.NoError(tb, err)
		_, err = tx.Exec(`INSERT INTO tenants (id, full_name, unit_id, due_day, rent) VALUES (?, ?, ?, ?, '15000')`,
			i, fmt.Sprintf("Tenant %d", i), i, i%31+1)
		require.NoError(tb, err)
	}
	require.NoError(tb, tx.Commit())
	return store
}

func newJob(store *rentsqlite.Store, metrics *jobmetrics.Metrics) *jobs.RentGenerateJob {
	svc := rent.NewService(rent.ServiceConfig{Store: store, Notifier: store, Auditor: store})
	runner := rent.NewRunner(rent.RunnerConfig{Leases: store, Creator: svc, Metrics: metrics, Workers: 8})
	return jobs.NewRentGenerateJob(runner, nil, metrics)
}

func TestRentRunThroughputAndIdempotence(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := newJob(seededStore(t), metrics)
	at := time.Date(2025, time.January, 30, 0, 0, 0, 0, time.UTC)

	first, err := job.RunOnce(context.Background(), at)
	require.NoError(t, err)
	require.Equal(t, perfTenants, first.Created+first.NotDue)
	require.Empty(t, first.Failed)

	second, err := job.RunOnce(context.Background(), at)
	require.NoError(t, err)
	require.Zero(t, second.Created)
	require.Equal(t, first.Created, second.Skipped)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(2), metricValue(t, families, "rentroll_jobs_total", map[string]string{"job": jobs.TaskRentGenerate, "status": "success"}))
	require.Equal(t, float64(first.Created), metricValue(t, families, "rentroll_rent_invoices_total", map[string]string{"outcome": rent.OutcomeCreated}))
	require.Less(t, histogramMean(t, families, "rentroll_job_duration_seconds", map[string]string{"job": jobs.TaskRentGenerate}), 10.0)
}

func BenchmarkRentRunAllSkipped(b *testing.B) {
	job := newJob(seededStore(b), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	at := time.Date(2025, time.January, 30, 0, 0, 0, 0, time.UTC)
	_, err := job.RunOnce(context.Background(), at)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := job.RunOnce(context.Background(), at); err != nil {
			b.Fatal(err)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}
