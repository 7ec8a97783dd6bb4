package rent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Outcome labels used for per-tenant classification.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeNotDue  = "not_due"
	OutcomeFailed  = "failed"
	OutcomeWarning = "warning"
)

// Creator is the idempotent invoice creation step.
type Creator interface {
	CreateIfAbsent(ctx context.Context, lease Lease, dueDate time.Time) (CreateResult, error)
}

// OutcomeRecorder receives per-tenant outcome counts.
type OutcomeRecorder interface {
	AddRentOutcome(outcome string, count int)
}

// RunnerConfig groups Runner dependencies.
type RunnerConfig struct {
	Leases   LeaseSource
	Creator  Creator
	Logger   *slog.Logger
	Metrics  OutcomeRecorder
	Workers  int
	Timeout  time.Duration
	Location *time.Location
}

// Runner executes one generation pass over the lease snapshot.
type Runner struct {
	leases   LeaseSource
	creator  Creator
	logger   *slog.Logger
	metrics  OutcomeRecorder
	workers  int
	timeout  time.Duration
	location *time.Location
}

// NewRunner builds a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		leases:   cfg.Leases,
		creator:  cfg.Creator,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		workers:  workers,
		timeout:  cfg.Timeout,
		location: loc,
	}
}

// Location returns the zone used to turn run instants into calendar dates.
func (r *Runner) Location() *time.Location {
	return r.location
}

type tenantOutcome struct {
	tenantID int64
	kind     string
	reason   string
	warnings []error
	abort    error
}

// RunOnce loads the lease snapshot and creates every eligible invoice for the
// calendar date of now. Per-tenant failures are collected in the summary; a
// storage failure, timeout or cancellation stops the run and is returned along
// with the partial summary. Re-running is always safe.
func (r *Runner) RunOnce(ctx context.Context, now time.Time) (RunSummary, error) {
	if r == nil || r.leases == nil || r.creator == nil {
		return RunSummary{}, errors.New("rent: runner not configured")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	today := now.In(r.location)
	summary := RunSummary{RunID: uuid.New(), RunDate: today, Failed: []Failure{}}
	logger := r.log().With(slog.String("run_id", summary.RunID.String()), slog.String("run_date", today.Format(time.DateOnly)))

	leases, err := r.leases.ActiveLeases(ctx)
	if err != nil {
		if !errors.Is(err, ErrStorage) {
			err = fmt.Errorf("%w: load leases: %w", ErrStorage, err)
		}
		logger.Error("load lease snapshot", slog.Any("error", err))
		summary.Duration = time.Since(start)
		return summary, err
	}
	summary.Leases = len(leases)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, lease := range leases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := r.process(gctx, lease, today)
			if out.abort != nil {
				return out.abort
			}
			mu.Lock()
			summary.record(out)
			mu.Unlock()
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].TenantID < summary.Failed[j].TenantID })
	sort.Slice(summary.Warnings, func(i, j int) bool { return summary.Warnings[i].TenantID < summary.Warnings[j].TenantID })
	summary.Duration = time.Since(start)
	r.recordMetrics(summary)

	attrs := []any{
		slog.Int("leases", summary.Leases),
		slog.Int("created", summary.Created),
		slog.Int("skipped", summary.Skipped),
		slog.Int("not_due", summary.NotDue),
		slog.Int("failed", len(summary.Failed)),
		slog.Duration("duration", summary.Duration),
	}
	if runErr != nil {
		logger.Error("rent run aborted", append(attrs, slog.Any("error", runErr))...)
		return summary, fmt.Errorf("rent: run aborted: %w", runErr)
	}
	for _, f := range summary.Failed {
		logger.Warn("rent tenant failed", slog.Int64("tenant_id", f.TenantID), slog.String("reason", f.Reason))
	}
	logger.Info("rent run complete", attrs...)
	return summary, nil
}

func (r *Runner) process(ctx context.Context, lease Lease, today time.Time) (out tenantOutcome) {
	out.tenantID = lease.TenantID
	if err := ctx.Err(); err != nil {
		out.abort = err
		return out
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = tenantOutcome{tenantID: lease.TenantID, kind: OutcomeFailed, reason: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	if err := ValidateLease(lease); err != nil {
		out.kind, out.reason = OutcomeFailed, err.Error()
		return out
	}
	window, err := ComputeWindow(lease.DueDay, today)
	if err != nil {
		out.kind, out.reason = OutcomeFailed, err.Error()
		return out
	}
	if !window.Eligible {
		out.kind = OutcomeNotDue
		return out
	}
	result, err := r.creator.CreateIfAbsent(ctx, lease, window.DueDate)
	if err != nil {
		if IsAbort(err) {
			out.abort = err
			return out
		}
		out.kind, out.reason = OutcomeFailed, err.Error()
		return out
	}
	if !result.Created {
		out.kind = OutcomeSkipped
		return out
	}
	out.kind = OutcomeCreated
	out.warnings = result.Warnings
	return out
}

func (s *RunSummary) record(out tenantOutcome) {
	switch out.kind {
	case OutcomeCreated:
		s.Created++
		for _, w := range out.warnings {
			s.Warnings = append(s.Warnings, Failure{TenantID: out.tenantID, Reason: w.Error()})
		}
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeNotDue:
		s.NotDue++
	case OutcomeFailed:
		s.Failed = append(s.Failed, Failure{TenantID: out.tenantID, Reason: out.reason})
	}
}

func (r *Runner) recordMetrics(s RunSummary) {
	if r.metrics == nil {
		return
	}
	r.metrics.AddRentOutcome(OutcomeCreated, s.Created)
	r.metrics.AddRentOutcome(OutcomeSkipped, s.Skipped)
	r.metrics.AddRentOutcome(OutcomeNotDue, s.NotDue)
	r.metrics.AddRentOutcome(OutcomeFailed, len(s.Failed))
	r.metrics.AddRentOutcome(OutcomeWarning, len(s.Warnings))
}

func (r *Runner) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
