package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-core/internal/app"
)

type rootOptions struct {
	store  string
	branch int64
	year   int64
	cfg    *app.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the ledger core: migrations, seed data, reports and jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			if opts.store != "" {
				cfg.StoreDriver = opts.store
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			opts.cfg = cfg
			opts.logger = app.NewLogger(cfg)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.store, "store", "", "Store driver override (postgres|memory)")
	cmd.PersistentFlags().Int64Var(&opts.branch, "branch", 1, "Branch id")
	cmd.PersistentFlags().Int64Var(&opts.year, "year", int64(time.Now().Year()), "Financial year id")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newTrialBalanceCmd(opts),
		newLedgerBookCmd(opts),
		newStockCmd(opts),
		newJobsCmd(opts),
	)
	return cmd
}

// container builds the services for one command run.
func (o *rootOptions) container(ctx context.Context) (*app.Container, error) {
	return app.NewContainer(ctx, o.cfg, o.logger, nil)
}

func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return id, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, value)
}
