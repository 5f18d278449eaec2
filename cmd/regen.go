package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/regen"
)

var (
	regenRow        int
	regenRows       []int
	regenPromptFile string
)

var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate email drafts for specific rows",
	Long:  "Rebuilds the email draft for one or more rows, overwriting any existing draft. Requires research to already be present. An optional prompt file replaces the built-in template.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rows := regenRows
		if regenRow > 0 {
			rows = append(rows, regenRow)
		}
		if len(rows) == 0 {
			return eris.New("pass --row or --rows")
		}

		var override string
		if regenPromptFile != "" {
			raw, err := os.ReadFile(regenPromptFile)
			if err != nil {
				return eris.Wrapf(err, "read prompt file %s", regenPromptFile)
			}
			override = string(raw)
		}

		p, err := buildPipeline(ctx)
		if err != nil {
			return err
		}

		ctrl := regen.NewController(p.pool, p.sheet.Profiles)
		state := model.NewRunState(uuid.New().String(), runConfigSnapshot(0))

		failures := ctrl.RegenerateAll(ctx, state, rows, override)
		p.sink.Close(ctx)

		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "skipping %s\n", f.Error())
		}
		printSummary(state, p)
		saveRun(state, p)
		return nil
	},
}

func init() {
	regenCmd.Flags().StringVar(&flagSpreadsheet, "spreadsheet", "", "spreadsheet ID (defaults to sheets.spreadsheet_id)")
	regenCmd.Flags().StringVar(&flagSheet, "sheet", "", "sheet name (defaults to sheets.sheet_name)")
	regenCmd.Flags().IntVar(&regenRow, "row", 0, "sheet row to regenerate")
	regenCmd.Flags().IntSliceVar(&regenRows, "rows", nil, "sheet rows to regenerate")
	regenCmd.Flags().StringVar(&regenPromptFile, "prompt-file", "", "file with a custom email prompt template")
	rootCmd.AddCommand(regenCmd)
}
