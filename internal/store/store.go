// Package store persists run history locally so past runs can be inspected
// without touching the sheet.
package store

import (
	"context"
	"time"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
)

// RunRecord is the durable summary of one finished run.
type RunRecord struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Config     model.RunConfig `json:"config"`
	Planned    int64           `json:"planned"`
	Completed  int64           `json:"completed"`
	Failed     int64           `json:"failed"`
	Skipped    int64           `json:"skipped"`
	TotalCost  cost.MicroUSD   `json:"total_cost_micro_usd"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Store defines the run-history persistence interface.
type Store interface {
	SaveRun(ctx context.Context, rec RunRecord, entries []cost.Entry) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Migrate(ctx context.Context) error
	Close() error
}
