package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acctools/cxflow/internal/classify"
	"github.com/acctools/cxflow/internal/display"
	"github.com/acctools/cxflow/internal/gemini"
	"github.com/acctools/cxflow/internal/notion"
	"github.com/acctools/cxflow/internal/reply"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Draft template-based replies for classified threads",
	Long: "Drafts picks a response template for every classified, unanswered\n" +
		"thread, personalizes it with customer and order data, and leaves the\n" +
		"result as a Gmail draft for human review.",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, check := range []func() error{cfg.ValidateShopify, cfg.ValidateNotion, cfg.ValidateGemini} {
			if err := check(); err != nil {
				return err
			}
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
		shop, err := shopifyClient()
		if err != nil {
			return err
		}
		templates := notion.New(cfg.Notion.APIKey, cfg.Notion.MasterDatabaseID)
		model := gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model, gemini.ChoiceConfig())

		pipeline := reply.NewPipeline(mail, templates, model, shop, taxonomy, cfg.Labels.Trigger, cfg.Labels.Processed, log)
		if err := pipeline.Run(ctx); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Draft pass complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(draftsCmd)
}
