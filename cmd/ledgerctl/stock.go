package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stock <product-id>",
		Short: "Print stock per godown and verify it against the item ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			stock, err := c.Inventory.StockByGodown(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (total %s)\n", stock.Product.Name, stock.Product.Quantity.String())
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Godown\tQuantity\tThaan\tReplayed\n")
			for _, loc := range stock.Locations {
				replay, err := c.Inventory.ReplayLocation(ctx, id, loc.GodownID)
				if err != nil {
					return err
				}
				mark := "ok"
				if !replay.Consistent {
					mark = "DRIFT " + replay.ReplayedQuantity.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", loc.GodownName, loc.Quantity.String(), loc.Thaan.String(), mark)
			}
			return w.Flush()
		},
	}
}
