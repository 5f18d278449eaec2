package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/pkg/gmail"
)

var draftsRows []int

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Create Gmail drafts from generated emails",
	Long:  "Creates a Gmail draft for every row with a non-empty draft cell, or only the rows given with --rows. Rows without a draft are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		_, sheet, err := loadSheet(ctx)
		if err != nil {
			return err
		}
		client, err := gmail.NewClient(ctx, cfg.Gmail.CredentialsPath)
		if err != nil {
			return err
		}

		wanted := make(map[int]bool, len(draftsRows))
		for _, row := range draftsRows {
			wanted[row] = true
		}

		created, skipped := 0, 0
		for _, p := range sheet.Profiles {
			if len(wanted) > 0 && !wanted[p.Row] {
				continue
			}
			if p.Draft == "" {
				skipped++
				continue
			}
			id, err := client.CreateDraft(ctx, *p, p.Draft, cfg.Gmail.SubjectPrefix)
			if err != nil {
				fmt.Fprintf(os.Stderr, "row %d: %v\n", p.Row, err)
				continue
			}
			zap.L().Info("draft created",
				zap.Int("row", p.Row),
				zap.String("name", p.Name),
				zap.String("draft_id", id))
			created++
		}

		fmt.Printf("%d draft(s) created, %d row(s) without a draft skipped\n", created, skipped)
		return nil
	},
}

func init() {
	draftsCmd.Flags().StringVar(&flagSpreadsheet, "spreadsheet", "", "spreadsheet ID (defaults to sheets.spreadsheet_id)")
	draftsCmd.Flags().StringVar(&flagSheet, "sheet", "", "sheet name (defaults to sheets.sheet_name)")
	draftsCmd.Flags().IntSliceVar(&draftsRows, "rows", nil, "only these sheet rows")
	rootCmd.AddCommand(draftsCmd)
}
