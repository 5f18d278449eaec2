package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scheduler"
	"github.com/sells-group/outreach-cli/internal/sink"
	"github.com/sells-group/outreach-cli/internal/store"
	anthropicpkg "github.com/sells-group/outreach-cli/pkg/anthropic"
	openaipkg "github.com/sells-group/outreach-cli/pkg/openai"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
	"github.com/sells-group/outreach-cli/pkg/sheets"
)

// Shared flags for commands that read the sheet.
var (
	flagSpreadsheet string
	flagSheet       string
)

// sheetTarget resolves the spreadsheet to operate on, flags over config.
func sheetTarget() (spreadsheetID, sheetName string, err error) {
	spreadsheetID = flagSpreadsheet
	if spreadsheetID == "" {
		spreadsheetID = cfg.Sheets.SpreadsheetID
	}
	sheetName = flagSheet
	if sheetName == "" {
		sheetName = cfg.Sheets.SheetName
	}
	if spreadsheetID == "" {
		return "", "", eris.New("no spreadsheet configured: pass --spreadsheet or set sheets.spreadsheet_id")
	}
	return spreadsheetID, sheetName, nil
}

func loadSheet(ctx context.Context) (sheets.Client, *sheets.Sheet, error) {
	spreadsheetID, sheetName, err := sheetTarget()
	if err != nil {
		return nil, nil, err
	}
	client, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsPath)
	if err != nil {
		return nil, nil, err
	}
	sheet, err := client.Load(ctx, spreadsheetID, sheetName)
	if err != nil {
		return nil, nil, err
	}
	return client, sheet, nil
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func limiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func callTimeout() time.Duration {
	return time.Duration(cfg.Scheduler.CallTimeoutSecs) * time.Second
}

// providerBreaker builds a fresh circuit breaker for one provider. Each
// provider gets its own so a broken API does not trip the others.
func providerBreaker() *resilience.Breaker {
	return resilience.NewBreaker(5, 30*time.Second)
}

func buildResearchProvider() (provider.ResearchProvider, error) {
	switch cfg.Research.Provider {
	case "perplexity", "":
		if cfg.Perplexity.Key == "" {
			return nil, eris.New("perplexity.key is not set")
		}
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model))
		return provider.NewPerplexityResearch(client, limiter(cfg.Perplexity.RatePerSecond), providerBreaker(), callTimeout()), nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic.key is not set")
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithModel(cfg.Anthropic.Model))
		return provider.NewAnthropicResearch(client, limiter(cfg.Anthropic.RatePerSecond), providerBreaker(), callTimeout()), nil
	default:
		return nil, eris.Errorf("unknown research provider %q", cfg.Research.Provider)
	}
}

func buildEmailProvider() (provider.EmailProvider, error) {
	if cfg.OpenAI.Key == "" {
		return nil, eris.New("openai.key is not set")
	}
	client := openaipkg.NewClient(cfg.OpenAI.Key, openaipkg.WithModel(cfg.OpenAI.Model))
	return provider.NewOpenAIEmail(client, limiter(cfg.OpenAI.RatePerSecond), providerBreaker(), callTimeout()), nil
}

// emailTemplate loads the configured template file, or the built-in default.
func emailTemplate() (*prompt.Template, error) {
	if cfg.Email.PromptFile == "" {
		return prompt.DefaultEmailTemplate(), nil
	}
	raw, err := os.ReadFile(cfg.Email.PromptFile)
	if err != nil {
		return nil, eris.Wrapf(err, "read prompt file %s", cfg.Email.PromptFile)
	}
	return prompt.Parse(string(raw))
}

// tokenCounter prefers exact Anthropic counting when a key is configured.
func tokenCounter() cost.Counter {
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithModel(cfg.Anthropic.Model))
		return anthropicpkg.NewTokenCounter(client)
	}
	return cost.HeuristicCounter{}
}

func retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    cfg.Scheduler.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Scheduler.BackoffSecs * float64(time.Second)),
		MaxBackoff:     time.Duration(cfg.Scheduler.MaxBackoffSecs * float64(time.Second)),
	}
}

// pipeline bundles everything one enrichment run needs.
type pipeline struct {
	sheetsClient sheets.Client
	sheet        *sheets.Sheet
	ledger       *cost.Ledger
	calc         *cost.Calculator
	sink         *sink.Sink
	pool         *scheduler.Pool
	reporter     *progress.ChannelReporter
	tmpl         *prompt.Template
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	sheetsClient, sheet, err := loadSheet(ctx)
	if err != nil {
		return nil, err
	}

	research, err := buildResearchProvider()
	if err != nil {
		return nil, err
	}
	email, err := buildEmailProvider()
	if err != nil {
		return nil, err
	}
	tmpl, err := emailTemplate()
	if err != nil {
		return nil, err
	}

	ledger := cost.NewLedger()
	calc := cost.NewCalculator(cfg.Pricing.Rates())
	snk := sink.New(sheetsClient, sheet, ledger, calc, zap.L(), sink.Config{
		BatchSize:     cfg.Sink.BatchSize,
		FlushInterval: time.Duration(cfg.Sink.FlushIntervalSecs) * time.Second,
	})

	reporter := progress.NewChannelReporter(256)
	pool := scheduler.NewPool(research, email, snk, ledger,
		progress.Multi{reporter, progress.NewLogReporter(zap.L())},
		zap.L(),
		scheduler.Config{
			Workers:           cfg.Scheduler.Workers,
			Retry:             retryConfig(),
			ResearchMaxTokens: cfg.Research.MaxTokens,
			EmailMaxTokens:    cfg.Email.MaxTokens,
			EmailTemplate:     tmpl,
		})

	return &pipeline{
		sheetsClient: sheetsClient,
		sheet:        sheet,
		ledger:       ledger,
		calc:         calc,
		sink:         snk,
		pool:         pool,
		reporter:     reporter,
		tmpl:         tmpl,
	}, nil
}

func runConfigSnapshot(limit int) model.RunConfig {
	return model.RunConfig{
		MaxWorkers:        cfg.Scheduler.Workers,
		MaxAttempts:       cfg.Scheduler.MaxAttempts,
		ResearchMaxTokens: cfg.Research.MaxTokens,
		EmailMaxTokens:    cfg.Email.MaxTokens,
		CallTimeout:       callTimeout(),
		ProfileLimit:      limit,
	}
}

func printValidationErrors(errs []*model.ValidationError) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "skipping %s\n", e.Error())
	}
}

func printEstimate(est cost.RunEstimate) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tPROFILES\tREQUESTS\tINPUT TOK\tOUTPUT TOK\tCOST")
	for _, kind := range []model.TaskKind{model.TaskResearch, model.TaskEmail} {
		k, ok := est.ByKind[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			kind, k.Profiles, k.Requests, k.InputTokens, k.OutputTokens, k.Cost)
	}
	fmt.Fprintf(w, "total\t\t\t\t\t%s\n", est.Total)
	w.Flush()
	fmt.Printf("confidence: %s\n", est.Confidence)
}

func printSummary(state *model.RunState, p *pipeline) {
	fmt.Printf("\ncompleted: %d  failed: %d  skipped: %d  (planned %d)\n",
		state.Completed.Load(), state.Failed.Load(), state.Skipped.Load(), state.Planned.Load())

	anns := p.sink.Annotations()
	if len(anns) > 0 {
		rows := make([]int, 0, len(anns))
		for row := range anns {
			rows = append(rows, row)
		}
		sort.Ints(rows)
		fmt.Println("\nfailures:")
		for _, row := range rows {
			for _, a := range anns[row] {
				fmt.Printf("  row %d %s (%d attempt(s)): %s\n", row, a.Kind, a.Attempts, a.Message)
			}
		}
	}

	totals := p.ledger.ProviderTotals()
	if len(totals) > 0 {
		fmt.Println("\nspend:")
		providers := make([]string, 0, len(totals))
		for prov := range totals {
			providers = append(providers, string(prov))
		}
		sort.Strings(providers)
		for _, prov := range providers {
			fmt.Printf("  %s: %s\n", prov, totals[model.Provider(prov)])
		}
		fmt.Printf("  total: %s (%d requests)\n", p.ledger.Total(), p.ledger.Requests())
	}

	if warnings := p.sink.Warnings(); len(warnings) > 0 {
		fmt.Println("\nwarnings:")
		for _, warning := range warnings {
			fmt.Printf("  %s\n", warning)
		}
	}
}

// confirm prompts for a y/N answer on stdin.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
