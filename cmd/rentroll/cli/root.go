// Package cli implements the rentroll operator commands.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/rentroll/internal/app"
	jobmetrics "github.com/odyssey-erp/rentroll/internal/jobs"
)

// RootOptions holds global flags and the dependencies commands build on.
type RootOptions struct {
	Verbose bool
	JSON    bool

	LoadConfig func() (*app.Config, error)
	OpenRent   func(ctx context.Context, cfg *app.Config, logger *slog.Logger, metrics *jobmetrics.Metrics) (*app.RentStack, error)
	OpenQueue  func(cfg *app.Config) (JobQueue, error)
}

// NewRootCommand creates the root command wired to the real environment.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{
		LoadConfig: app.LoadConfig,
		OpenRent:   app.OpenRent,
		OpenQueue: func(cfg *app.Config) (JobQueue, error) {
			return NewJobsCLI(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
		},
	})
}

// NewRootCommandWith creates the root command around opts.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rentroll",
		Short: "Recurring rent invoice generation",
		Long: `rentroll creates one pending rent invoice per tenant and billing period,
five days ahead of each lease's due day. Runs are idempotent and can be
repeated or overlapped safely.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging on stderr")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTriggerCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewMarkCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{JSON: o.JSON, Writer: cmd.OutOrStdout()}
}

func (o *RootOptions) config() (*app.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}
