package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/rentroll/internal/app"
	"github.com/odyssey-erp/rentroll/migrations"
)

// NewMigrateCommand applies the embedded schema.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			stack, err := opts.OpenRent(cmd.Context(), cfg, opts.logger(cmd.ErrOrStderr()), nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "open rent store", err)
			}
			defer stack.Close()

			// the sqlite store applies its schema when opened
			applied := []string{}
			if cfg.RentStore == app.StorePostgres && stack.Pool != nil {
				versions, err := migrations.Apply(cmd.Context(), stack.Pool)
				if err != nil {
					return WrapExitError(ExitCommandError, "apply migrations", err)
				}
				applied = append(applied, versions...)
			}
			out := struct {
				Store   string   `json:"store"`
				Applied []string `json:"applied"`
			}{Store: cfg.RentStore, Applied: applied}
			return opts.output(cmd).Result(out, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "store\t%s\n", out.Store)
				if len(applied) == 0 {
					fmt.Fprintln(w, "schema up to date")
				}
				for _, v := range applied {
					fmt.Fprintf(w, "applied\t%s\n", v)
				}
			})
		},
	}
}
