// Package regen re-runs email generation for selected rows, optionally with
// a custom prompt template, bypassing skip-if-present planning.
package regen

import (
	"context"
	"errors"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/scheduler"
)

// Controller builds regeneration work items and runs them through the same
// pool, sink, and ledger as a normal run.
type Controller struct {
	pool  *scheduler.Pool
	byRow map[int]*model.Profile
}

// NewController indexes the loaded profiles by sheet row.
func NewController(pool *scheduler.Pool, profiles []*model.Profile) *Controller {
	byRow := make(map[int]*model.Profile, len(profiles))
	for _, p := range profiles {
		byRow[p.Row] = p
	}
	return &Controller{pool: pool, byRow: byRow}
}

// Regenerate rebuilds the email draft for one row. The override template, if
// given, is validated up front. Research must already be present; a draft is
// never generated from an empty research cell.
func (c *Controller) Regenerate(ctx context.Context, state *model.RunState, row int, override string) error {
	item, err := c.item(row, override)
	if err != nil {
		return err
	}
	c.pool.Run(ctx, state, []model.WorkItem{*item})
	return nil
}

// RegenerateAll rebuilds drafts for several rows. Rows that fail validation
// are returned as errors; the rest run as independent items.
func (c *Controller) RegenerateAll(ctx context.Context, state *model.RunState, rows []int, override string) []*model.ValidationError {
	var items []model.WorkItem
	var failures []*model.ValidationError

	for _, row := range rows {
		item, err := c.item(row, override)
		if err != nil {
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				verr = &model.ValidationError{Row: row, Reason: err.Error()}
			}
			failures = append(failures, verr)
			continue
		}
		items = append(items, *item)
	}

	if len(items) > 0 {
		c.pool.Run(ctx, state, items)
	}
	return failures
}

func (c *Controller) item(row int, override string) (*model.WorkItem, error) {
	if override != "" {
		if _, err := prompt.Parse(override); err != nil {
			return nil, err
		}
	}

	p, ok := c.byRow[row]
	if !ok {
		return nil, &model.ValidationError{Row: row, Reason: "row not found in sheet"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Research == "" {
		return nil, &model.ValidationError{
			Row:    row,
			Field:  "research",
			Reason: "no research text, run enrichment first",
		}
	}

	return &model.WorkItem{
		Profile:        p,
		Kind:           model.TaskEmail,
		PromptOverride: override,
		SkipGate:       true,
	}, nil
}
