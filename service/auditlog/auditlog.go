// Package auditlog defines the append-only audit log. Events are never
// mutated or deleted through this API; List returns the most recent first.
package auditlog

import (
	"context"

	"github.com/viant/accessflow/internal/clock"
	"github.com/viant/accessflow/internal/idgen"
	"github.com/viant/accessflow/model/audit"
)

const (
	// DefaultLimit is used when a filter names no limit.
	DefaultLimit = 50
	// MaxLimit bounds a single page.
	MaxLimit = 500
)

// Filter narrows List results.
type Filter struct {
	Action   audit.Action
	EntityID string
	Limit    int
}

// EffectiveLimit clamps Limit to [1, MaxLimit], defaulting to DefaultLimit.
func (f *Filter) EffectiveLimit() int {
	if f == nil || f.Limit <= 0 {
		return DefaultLimit
	}
	if f.Limit > MaxLimit {
		return MaxLimit
	}
	return f.Limit
}

// Match reports whether e satisfies the filter.
func (f *Filter) Match(e *audit.Event) bool {
	if f == nil {
		return true
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	return true
}

// Page is one List result; Total counts every retained matching event.
type Page struct {
	Items []*audit.Event `json:"items"`
	Total int            `json:"total"`
}

// Log is an append-only audit log.
type Log interface {
	// Append stores events atomically: either all are stored or none. A
	// failure is reported as an Unavailable fault. Append assigns ID,
	// Sequence and Timestamp when unset.
	Append(ctx context.Context, events ...*audit.Event) error

	// List returns matching events, most recent first.
	List(ctx context.Context, filter *Filter) (*Page, error)
}

// Prepare stamps id and timestamp on events that lack them.
func Prepare(events []*audit.Event) {
	now := clock.Now()
	for _, e := range events {
		if e.ID == "" {
			e.ID = idgen.New()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		if e.SchemaVersion == 0 {
			e.SchemaVersion = audit.SchemaVersion
		}
	}
}
