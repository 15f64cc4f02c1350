package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acctools/cxflow/internal/bulkorder"
	"github.com/acctools/cxflow/internal/display"
	"github.com/acctools/cxflow/internal/orders"
	"github.com/acctools/cxflow/internal/store"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Order sheet export, reconciliation, and bulk creation",
}

// ordersEngine wires the export/update engine with its sheet and cursor
// store. The returned closer releases the state database.
func ordersEngine(cmd *cobra.Command) (*orders.Engine, func(), error) {
	ctx := cmd.Context()
	shop, err := shopifyClient()
	if err != nil {
		return nil, nil, err
	}
	sheet, err := sheetsClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.StateDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open state db: %w", err)
	}
	return orders.New(shop, sheet, st, cfg.Orders.SheetName, log), func() { st.Close() }, nil
}

var ordersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Append unseen orders to the order sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, done, err := ordersEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		n, err := engine.Export(cmd.Context())
		if err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Exported %d orders", n)
		}
		return nil
	},
}

var ordersUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rewrite sheet rows for orders that changed since export",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, done, err := ordersEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		n, err := engine.Update(cmd.Context())
		if err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Updated %d orders", n)
		}
		return nil
	},
}

var ordersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Place one order per recipient from the creation sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		shop, err := shopifyClient()
		if err != nil {
			return err
		}
		sheet, err := sheetsClient(ctx)
		if err != nil {
			return err
		}

		engine := bulkorder.New(shop, sheet, cfg.Bulk.OrdersSheet, cfg.Bulk.DraftEmail, nil, log)
		n, err := engine.CreateOrders(ctx)
		if err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Created %d orders", n)
		}
		return nil
	},
}

var ordersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Place fully discounted draft orders from the seeding sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateBulkDrafts(); err != nil {
			return err
		}
		ctx := cmd.Context()
		shop, err := shopifyClient()
		if err != nil {
			return err
		}
		sheet, err := sheetsClient(ctx)
		if err != nil {
			return err
		}

		engine := bulkorder.New(shop, sheet, cfg.Bulk.DraftsSheet, cfg.Bulk.DraftEmail, nil, log)
		n, err := engine.CreateDrafts(ctx)
		if err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Created %d draft orders", n)
		}
		return nil
	},
}

func init() {
	ordersCmd.AddCommand(ordersExportCmd)
	ordersCmd.AddCommand(ordersUpdateCmd)
	ordersCmd.AddCommand(ordersCreateCmd)
	ordersCmd.AddCommand(ordersSeedCmd)
	rootCmd.AddCommand(ordersCmd)
}
