package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func TestTrackerRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("rent:generate").End(nil))
	err := errors.New("store down")
	require.ErrorIs(t, m.Track("rent:generate").End(err), err)

	runs := gather(t, reg, "rentroll_jobs_total")
	require.Len(t, runs, 2)
	failures := gather(t, reg, "rentroll_jobs_failures_total")
	require.Len(t, failures, 1)
	require.Equal(t, float64(1), failures[0].GetCounter().GetValue())
	last := gather(t, reg, "rentroll_job_last_success_timestamp_seconds")
	require.Len(t, last, 1)
	require.Positive(t, last[0].GetGauge().GetValue())
}

func TestAddRentOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddRentOutcome("created", 3)
	m.AddRentOutcome("created", 2)
	m.AddRentOutcome("failed", 0)

	metrics := gather(t, reg, "rentroll_rent_invoices_total")
	require.Len(t, metrics, 1)
	require.Equal(t, "created", metrics[0].GetLabel()[0].GetValue())
	require.Equal(t, float64(5), metrics[0].GetCounter().GetValue())
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddRentOutcome("created", 1)
	require.NoError(t, m.Track("noop").End(nil))
}
