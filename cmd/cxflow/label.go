package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acctools/cxflow/internal/classify"
	"github.com/acctools/cxflow/internal/display"
	"github.com/acctools/cxflow/internal/gemini"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Classify unlabeled threads and apply taxonomy labels",
	Long: "Label runs every thread not yet carrying the classification marker\n" +
		"through the model and applies the resulting tag and subtag labels.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateGemini(); err != nil {
			return err
		}
		taxonomy, err := classify.LoadTaxonomy(cfg.Classify.TaxonomyFile)
		if err != nil {
			return fmt.Errorf("load taxonomy: %w", err)
		}

		ctx := cmd.Context()
		mail, err := gmailClient(ctx)
		if err != nil {
			return err
		}
		model := gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model, gemini.ClassifyConfig())

		labeler := classify.NewLabeler(mail, model, taxonomy, cfg.Labels.Trigger, cfg.Classify.SearchAfter, log)
		if err := labeler.Run(ctx); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Classification pass complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}
