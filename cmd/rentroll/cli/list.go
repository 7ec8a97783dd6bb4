package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/rentroll/internal/rent"
)

type periodListing struct {
	Period   string            `json:"period"`
	Invoices []rent.Invoice    `json:"invoices"`
	Totals   rent.StatusTotals `json:"totals"`
}

// NewListCommand prints the invoices due in a billing period.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rent invoices due in a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			p := rent.PeriodOf(time.Now().In(cfg.Location()))
			if period != "" {
				if p, err = rent.ParsePeriod(period); err != nil {
					return WrapExitError(ExitCommandError, "invalid --period", err)
				}
			}
			stack, err := opts.OpenRent(cmd.Context(), cfg, opts.logger(cmd.ErrOrStderr()), nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "open rent store", err)
			}
			defer stack.Close()

			invoices, err := stack.Store.ListPeriod(cmd.Context(), p)
			if err != nil {
				return WrapExitError(ExitCommandError, "list invoices", err)
			}
			if invoices == nil {
				invoices = []rent.Invoice{}
			}
			result := periodListing{Period: p.String(), Invoices: invoices, Totals: rent.Tally(invoices)}
			return opts.output(cmd).Result(result, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "ID\tTENANT\tDUE\tSTATUS\n")
				for _, inv := range invoices {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", inv.ID, inv.TenantID, inv.DueDate.Format(time.DateOnly), inv.Status)
				}
				fmt.Fprintf(w, "%d invoice(s) in %s: %d pending, %d paid, %d overdue\n",
					len(invoices), p, result.Totals.Pending, result.Totals.Paid, result.Totals.Overdue)
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "billing period YYYY-MM (default: current month)")
	return cmd
}
