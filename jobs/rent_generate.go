package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/rentroll/internal/jobs"
	"github.com/odyssey-erp/rentroll/internal/rent"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RentRunner is the generation pass driven by the job.
type RentRunner interface {
	RunOnce(ctx context.Context, now time.Time) (rent.RunSummary, error)
	Location() *time.Location
}

// RentGenerateJob creates the rent invoices that fall inside their billing
// window. The cron task, the HTTP trigger and the CLI all end up in RunOnce.
type RentGenerateJob struct {
	Runner  RentRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewRentGenerateJob initialises the rent generation handler.
func NewRentGenerateJob(runner RentRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *RentGenerateJob {
	return &RentGenerateJob{
		Runner:  runner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the Asynq task. Malformed payloads are not retried; aborted
// runs are returned so Asynq retries them.
func (j *RentGenerateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("rent generate: handler not configured")
	}
	var payload RentGeneratePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("rent generate: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	at, err := j.RunDate(payload.Date)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err = j.RunOnce(ctx, at)
	return err
}

// RunOnce performs one generation pass for the calendar date of at.
func (j *RentGenerateJob) RunOnce(ctx context.Context, at time.Time) (summary rent.RunSummary, resultErr error) {
	if j == nil || j.Runner == nil {
		return rent.RunSummary{}, errors.New("rent generate: runner not configured")
	}
	tracker := j.metrics().Track(TaskRentGenerate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_date", at.In(j.Runner.Location()).Format(time.DateOnly)))
	logger.Info("starting rent generation")

	summary, err := j.Runner.RunOnce(ctx, at)
	if err != nil {
		logger.Error("rent generation failed", slog.Any("error", err))
		return summary, err
	}
	logger.Info("completed rent generation",
		slog.Int("created", summary.Created),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", len(summary.Failed)),
		slog.Int("warnings", len(summary.Warnings)),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// RunDate resolves an optional YYYY-MM-DD date in the runner's location.
// An empty date resolves to the current instant.
func (j *RentGenerateJob) RunDate(date string) (time.Time, error) {
	if date == "" {
		return j.now(), nil
	}
	loc := time.UTC
	if j.Runner != nil && j.Runner.Location() != nil {
		loc = j.Runner.Location()
	}
	at, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", rent.ErrValidation, date)
	}
	return at, nil
}

func (j *RentGenerateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRentGenerate))
	}
	return slog.Default().With(slog.String("job", TaskRentGenerate))
}

func (j *RentGenerateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RentGenerateJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
