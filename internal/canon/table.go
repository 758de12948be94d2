package canon

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/table"
	"github.com/hyperjump/schemalign/internal/vector"
)

// FailurePolicy decides what ProcessTable does when a column cannot be classified.
type FailurePolicy string

const (
	// FailureAbort stops at the first failing column and returns its error; no renames are applied.
	FailureAbort FailurePolicy = "abort"
	// FailureSkip leaves the failing column's name unchanged and continues.
	FailureSkip FailurePolicy = "skip"
)

// ParseFailurePolicy parses a policy name; "" is FailureAbort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailureAbort:
		return FailureAbort, nil
	case FailureSkip:
		return FailureSkip, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (supported: abort, skip)", s)
	}
}

// ColumnFailure is a column skipped under FailureSkip.
type ColumnFailure struct {
	Column string `json:"column"`
	Error  string `json:"error"`
}

// Collision is a rename dropped because its target name was already taken in the table.
type Collision struct {
	Column string `json:"column"`
	Target string `json:"target"`
}

// Report summarizes one ProcessTable call.
type Report struct {
	Registry   string            `json:"registry"`
	Decisions  []models.Decision `json:"decisions"`
	Renames    map[string]string `json:"renames"`
	Collisions []Collision       `json:"collisions,omitempty"`
	Failures   []ColumnFailure   `json:"failures,omitempty"`
}

// Added returns how many columns were registered as new features.
func (r *Report) Added() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Added {
			n++
		}
	}
	return n
}

// ProcessTable classifies every column of t in order and returns a copy of t with the rename
// map applied once at the end. A column is renamed only when its decision is not Added and
// names a different feature. Renames that would duplicate a column name are dropped and listed
// in the report; the earlier column keeps the name.
func (c *Canonicalizer) ProcessTable(ctx context.Context, registry *vector.Collection, t *table.Table) (*table.Table, *Report, error) {
	report := &Report{Registry: registry.Name(), Renames: map[string]string{}}
	wanted := make(map[string]string)

	for i, col := range t.Columns {
		d, err := c.SmartLoad(ctx, registry, col, t.Sample(i, c.sampleSize))
		if err != nil {
			if c.failure == FailureSkip {
				report.Failures = append(report.Failures, ColumnFailure{Column: col, Error: err.Error()})
				continue
			}
			return nil, report, fmt.Errorf("column %q: %w", col, err)
		}
		report.Decisions = append(report.Decisions, d)
		if d.Renamed() {
			wanted[col] = d.Name
		}
	}

	report.Renames, report.Collisions = resolveRenames(t.Columns, wanted)
	if len(report.Collisions) > 0 {
		c.logger.Warn("rename collisions", zap.String("registry", registry.Name()), zap.Any("collisions", report.Collisions))
	}
	if len(report.Renames) == 0 {
		return t, report, nil
	}
	return t.Rename(report.Renames), report, nil
}

// resolveRenames drops renames whose target is already a column name after renaming. Columns
// that keep their own name hold it first; among renamed columns the earlier one wins. Dropping
// a rename frees nothing and may occupy a name, so the pass repeats until stable.
func resolveRenames(columns []string, wanted map[string]string) (map[string]string, []Collision) {
	renames := make(map[string]string, len(wanted))
	for k, v := range wanted {
		renames[k] = v
	}
	var collisions []Collision
	for {
		taken := make(map[string]bool, len(columns))
		for _, col := range columns {
			if _, ok := renames[col]; !ok {
				taken[col] = true
			}
		}
		dropped := false
		for _, col := range columns {
			target, ok := renames[col]
			if !ok {
				continue
			}
			if taken[target] {
				delete(renames, col)
				collisions = append(collisions, Collision{Column: col, Target: target})
				dropped = true
				break
			}
			taken[target] = true
		}
		if !dropped {
			return renames, collisions
		}
	}
}
