package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/acctools/cxflow/internal/display"
	"github.com/acctools/cxflow/internal/store"
	"github.com/acctools/cxflow/internal/tracker"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Reconcile the inbound tracker sheet with labeled threads",
	Long: "Tracker mirrors every thread matching the configured label queries\n" +
		"into the tracker sheet: new threads are appended, changed rows are\n" +
		"rewritten, and rows whose thread lost its labels are removed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateTracker(); err != nil {
			return err
		}
		loc, err := time.LoadLocation(cfg.Tracker.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Tracker.Timezone, err)
		}

		ctx := cmd.Context()
		mail, err := gmailClient(ctx)
		if err != nil {
			return err
		}
		sheet, err := sheetsClient(ctx)
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.StateDB)
		if err != nil {
			return fmt.Errorf("open state db: %w", err)
		}
		defer st.Close()

		engine := tracker.New(mail, sheet, st, tracker.Config{
			SheetName:             cfg.Tracker.SheetName,
			CXEmail:               cfg.Tracker.CXEmail,
			LabelQueries:          cfg.Tracker.LabelQueries,
			SearchAfter:           cfg.Tracker.SearchAfter,
			RequiredLabelPrefixes: cfg.Tracker.RequiredLabelPrefixes,
			Location:              loc,
		}, log)

		stats, err := engine.Sync(ctx)
		if err != nil {
			return err
		}
		if !quietFlag {
			display.Header("Tracker sync")
			display.Stat("Created", stats.Created)
			display.Stat("Updated", stats.Updated)
			display.Stat("Deleted", stats.Deleted)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trackerCmd)
}
