// Package planner derives outstanding work items from current record state.
package planner

import (
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Config controls planning.
type Config struct {
	// SkipExisting skips task kinds whose output field is already populated.
	// Disabled only by the regeneration path.
	SkipExisting bool

	// Limit truncates the number of distinct profiles considered.
	// 0 = unlimited.
	Limit int
}

// Plan walks profiles in row order and emits the outstanding work items.
// Rows failing required-field validation are skipped entirely and reported
// as ValidationErrors; they never abort the run. Output order preserves
// input order. Re-planning a fully populated sheet yields zero items.
func Plan(profiles []*model.Profile, cfg Config) (items []model.WorkItem, errs []*model.ValidationError) {
	considered := 0
	for _, p := range profiles {
		if cfg.Limit > 0 && considered >= cfg.Limit {
			break
		}
		considered++

		if err := p.Validate(); err != nil {
			ve := err.(*model.ValidationError)
			errs = append(errs, ve)
			zap.L().Warn("skipping invalid row",
				zap.Int("row", p.Row),
				zap.String("field", ve.Field),
			)
			continue
		}

		needsResearch := !cfg.SkipExisting || p.Research == ""
		needsDraft := !cfg.SkipExisting || p.Draft == ""

		if needsResearch {
			items = append(items, model.WorkItem{Profile: p, Kind: model.TaskResearch})
		}
		// Email items are planned even when research is also queued; the
		// dependency is enforced at dispatch time, not here.
		if needsDraft {
			items = append(items, model.WorkItem{Profile: p, Kind: model.TaskEmail})
		}
	}
	return items, errs
}
