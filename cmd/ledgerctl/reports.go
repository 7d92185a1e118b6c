package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
)

func newTrialBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance of a branch and year",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			tb, err := c.Reports.TrialBalance(ctx, opts.branch, opts.year)
			if err != nil {
				return err
			}
			printTrialBalance(cmd.OutOrStdout(), tb)
			return nil
		},
	}
}

func newLedgerBookCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "ledger-book <ledger-id>",
		Short: "Print the running balance of one ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "ledger id")
			if err != nil {
				return err
			}
			fromDate, err := parseDate(from)
			if err != nil {
				return err
			}
			toDate, err := parseDate(to)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			book, err := c.Reports.LedgerBook(ctx, id, fromDate, toDate)
			if err != nil {
				return err
			}
			printLedgerBook(cmd.OutOrStdout(), book)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD)")
	return cmd
}

func printTrialBalance(out io.Writer, tb reports.TrialBalance) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Code\tLedger\tDebit\tCredit\tClosing Dr\tClosing Cr\t\n")
	for _, g := range tb.Groups {
		fmt.Fprintf(w, "%s\t%s\t\t\t\t\t\n", g.Key, g.Name)
		for _, a := range g.Accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", a.Code, a.Name,
				a.Debit.StringFixed(2), a.Credit.StringFixed(2), a.ClosingDebit.StringFixed(2), a.ClosingCredit.StringFixed(2))
		}
	}
	fmt.Fprintf(w, "\tTotal\t%s\t%s\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2),
		tb.ClosingDebit.StringFixed(2), tb.ClosingCredit.StringFixed(2))
	_ = w.Flush()
	if tb.Difference.IsZero() {
		fmt.Fprintln(out, "[BALANCED]")
	} else {
		fmt.Fprintf(out, "[UNBALANCED] difference %s\n", tb.Difference.StringFixed(2))
	}
}

func printLedgerBook(out io.Writer, book reports.LedgerBook) {
	fmt.Fprintf(out, "%s %s\n", book.Ledger.Code, book.Ledger.Name)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Date\tReference\tNarration\tDebit\tCredit\tBalance\n")
	fmt.Fprintf(w, "\t\tOpening\t\t\t%s\n", book.OpeningBalance.StringFixed(2))
	for _, row := range book.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", row.Date.Format("2006-01-02"), row.Reference, row.Narration,
			row.Debit.StringFixed(2), row.Credit.StringFixed(2), row.BalanceAfter.StringFixed(2))
	}
	fmt.Fprintf(w, "\t\tClosing\t\t\t%s\n", book.ClosingBalance.StringFixed(2))
	_ = w.Flush()
	if !book.Drift.IsZero() {
		fmt.Fprintf(out, "drift %s between stored and replayed balance\n", book.Drift.StringFixed(2))
	}
}
