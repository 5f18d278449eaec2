package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/planner"
)

var estimateLimit int

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Project the cost of a run without making completion calls",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		_, sheet, err := loadSheet(ctx)
		if err != nil {
			return err
		}

		items, verrs := planner.Plan(sheet.Profiles, planner.Config{SkipExisting: true, Limit: estimateLimit})
		printValidationErrors(verrs)
		if len(items) == 0 {
			fmt.Println("nothing to do: every considered row is already enriched")
			return nil
		}

		tmpl, err := emailTemplate()
		if err != nil {
			return err
		}

		calc := cost.NewCalculator(cfg.Pricing.Rates())
		est := cost.NewEstimator(calc, tokenCounter()).EstimateRun(ctx, items, cost.EstimateConfig{
			ResearchProvider:  model.Provider(cfg.Research.Provider),
			ResearchMaxTokens: cfg.Research.MaxTokens,
			EmailMaxTokens:    cfg.Email.MaxTokens,
			EmailTemplate:     tmpl,
		})

		fmt.Printf("%d task(s) planned\n\n", len(items))
		printEstimate(est)
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringVar(&flagSpreadsheet, "spreadsheet", "", "spreadsheet ID (defaults to sheets.spreadsheet_id)")
	estimateCmd.Flags().StringVar(&flagSheet, "sheet", "", "sheet name (defaults to sheets.sheet_name)")
	estimateCmd.Flags().IntVar(&estimateLimit, "limit", 0, "consider at most N profiles (0 = all)")
	rootCmd.AddCommand(estimateCmd)
}
