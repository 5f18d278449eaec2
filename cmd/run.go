package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/planner"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	runLimit int
	runYes   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich sheet profiles with research and email drafts",
	Long:  "Plans outstanding work from the sheet, shows a cost estimate, then runs research and email generation across the worker pool. Ctrl-C cancels gracefully: in-flight calls finish, the rest is skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		p, err := buildPipeline(ctx)
		if err != nil {
			return err
		}

		items, verrs := planner.Plan(p.sheet.Profiles, planner.Config{SkipExisting: true, Limit: runLimit})
		printValidationErrors(verrs)
		if len(items) == 0 {
			fmt.Println("nothing to do: every considered row is already enriched")
			return nil
		}

		est := estimateItems(ctx, p, items)
		printEstimate(est)
		if !runYes && !confirm(fmt.Sprintf("proceed with %d task(s) for an estimated %s", len(items), est.Total)) {
			fmt.Println("aborted")
			return nil
		}

		state := model.NewRunState(uuid.New().String(), runConfigSnapshot(runLimit))

		// Work runs on its own context so a graceful cancel never aborts
		// in-flight calls; a second signal does.
		workCtx, hardCancel := context.WithCancel(context.Background())
		defer hardCancel()

		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			zap.L().Info("cancelling run, in-flight calls will finish")
			state.Cancel()
			<-sigCh
			zap.L().Warn("second signal, aborting in-flight calls")
			hardCancel()
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			p.pool.Run(workCtx, state, items)
		}()

	progress:
		for {
			select {
			case <-done:
				break progress
			case e, ok := <-p.reporter.Events():
				if !ok {
					break progress
				}
				fmt.Printf("\r%d/%d done  %s spent   ", e.Done(), e.Total, e.Cost)
			}
		}
		<-done
		fmt.Println()

		p.sink.Close(workCtx)
		printSummary(state, p)
		saveRun(state, p)
		return nil
	},
}

// estimateItems projects spend for the planned items using the configured
// counter and email template.
func estimateItems(ctx context.Context, p *pipeline, items []model.WorkItem) cost.RunEstimate {
	est := cost.NewEstimator(p.calc, tokenCounter())
	return est.EstimateRun(ctx, items, cost.EstimateConfig{
		ResearchProvider:  model.Provider(cfg.Research.Provider),
		ResearchMaxTokens: cfg.Research.MaxTokens,
		EmailMaxTokens:    cfg.Email.MaxTokens,
		EmailTemplate:     p.tmpl,
	})
}

// saveRun persists the run summary locally. A store failure is only a
// warning; the sheet already holds the results.
func saveRun(state *model.RunState, p *pipeline) {
	ctx := context.Background()
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run history store unavailable", zap.Error(err))
		return
	}
	defer st.Close()

	rec := store.RunRecord{
		ID:         state.ID,
		StartedAt:  state.StartedAt,
		FinishedAt: time.Now().UTC(),
		Config:     state.Config,
		Planned:    state.Planned.Load(),
		Completed:  state.Completed.Load(),
		Failed:     state.Failed.Load(),
		Skipped:    state.Skipped.Load(),
		TotalCost:  p.ledger.Total(),
		Warnings:   p.sink.Warnings(),
	}
	if err := st.SaveRun(ctx, rec, p.ledger.Entries()); err != nil {
		zap.L().Warn("failed to save run history", zap.Error(err))
		return
	}
	fmt.Printf("\nrun %s saved\n", state.ID)
}

func init() {
	runCmd.Flags().StringVar(&flagSpreadsheet, "spreadsheet", "", "spreadsheet ID (defaults to sheets.spreadsheet_id)")
	runCmd.Flags().StringVar(&flagSheet, "sheet", "", "sheet name (defaults to sheets.sheet_name)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process at most N profiles (0 = all)")
	runCmd.Flags().BoolVar(&runYes, "yes", false, "skip the cost confirmation prompt")
	rootCmd.AddCommand(runCmd)
}
