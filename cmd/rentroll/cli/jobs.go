package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/rentroll/jobs"
)

// JobQueue is the subset of queue operations the CLI uses.
type JobQueue interface {
	Trigger(ctx context.Context, date string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers for the given Redis server.
func NewJobsCLI(addr, password string, db int) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a rent generation run.
func (c *JobsCLI) Trigger(ctx context.Context, date string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueRentGenerate(ctx, date)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}

// NewTriggerCommand enqueues a run for the worker to pick up.
func NewTriggerCommand(opts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Enqueue a rent generation run on the worker queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue(opts)
			if err != nil {
				return err
			}
			defer queue.Close()

			info, err := queue.Trigger(cmd.Context(), date)
			if err != nil {
				return WrapExitError(ExitCommandError, "enqueue rent run", err)
			}
			type enqueued struct {
				TaskID string `json:"task_id"`
				Queue  string `json:"queue"`
				Date   string `json:"date,omitempty"`
			}
			out := enqueued{TaskID: info.ID, Queue: info.Queue, Date: date}
			return opts.output(cmd).Result(out, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "enqueued\t%s\n", out.TaskID)
				fmt.Fprintf(w, "queue\t%s\n", out.Queue)
				if date != "" {
					fmt.Fprintf(w, "date\t%s\n", date)
				}
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "run date YYYY-MM-DD (default: day the worker runs it)")
	return cmd
}

// NewQueueCommand prints queue depth and upcoming scheduled tasks.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue(opts)
			if err != nil {
				return err
			}
			defer queue.Close()

			stats, err := queue.InspectQueue(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "inspect queue", err)
			}
			scheduled, err := queue.ListScheduled(cmd.Context(), size)
			if err != nil {
				return WrapExitError(ExitCommandError, "list scheduled", err)
			}
			type scheduledTask struct {
				ID   string    `json:"id"`
				Type string    `json:"type"`
				At   time.Time `json:"next_process_at"`
			}
			out := struct {
				QueueStats
				Scheduled []scheduledTask `json:"scheduled"`
			}{QueueStats: stats, Scheduled: []scheduledTask{}}
			for _, t := range scheduled {
				out.Scheduled = append(out.Scheduled, scheduledTask{ID: t.ID, Type: t.Type, At: t.NextProcessAt})
			}
			return opts.output(cmd).Result(out, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "queue\t%s\n", stats.Queue)
				fmt.Fprintf(w, "pending\t%d\nactive\t%d\nscheduled\t%d\nretry\t%d\narchived\t%d\n",
					stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
				for _, t := range out.Scheduled {
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Type, t.At.Format(time.RFC3339))
				}
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "number of scheduled tasks to list")
	return cmd
}

func openQueue(opts *RootOptions) (JobQueue, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	queue, err := opts.OpenQueue(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open queue", err)
	}
	return queue, nil
}
