package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/rentroll/internal/jobs"
	"github.com/odyssey-erp/rentroll/internal/observability"
	"github.com/odyssey-erp/rentroll/internal/rent"
	"github.com/odyssey-erp/rentroll/jobs"
)

type fixedRunner struct{}

func (fixedRunner) RunOnce(ctx context.Context, now time.Time) (rent.RunSummary, error) {
	return rent.RunSummary{RunDate: now, Created: 1, Failed: []rent.Failure{}}, nil
}

func (fixedRunner) Location() *time.Location { return time.UTC }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	job := jobs.NewRentGenerateJob(fixedRunner{}, logger, jobmetrics.NewMetrics(metrics.Registerer()))
	return NewRouter(RouterParams{
		Logger:     logger,
		Config:     &Config{AppEnv: "test", AppRateLimit: 100},
		JobHandler: jobs.NewHandler(nil, job, nil, logger),
		Metrics:    metrics,
	})
}

func TestRouterServesOpsEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/rent/runs", strings.NewReader(`{"date":"2024-11-25"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"created":1`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `rentroll_jobs_total{job="rent:generate",status="success"} 1`)
	require.Contains(t, rec.Body.String(), `route="/jobs/rent/runs"`)
}
