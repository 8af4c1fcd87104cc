// Package sql implements the audit log on the relational database shared
// with the SQL request store. Appends join the caller's unit transaction.
package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/dao/sqldb"
)

const eventColumns = `sequence, id, occurred_at, actor_email, actor_role, action, entity_type, entity_id, schema_version, metadata`

type row struct {
	Sequence      int64     `db:"sequence"`
	ID            string    `db:"id"`
	OccurredAt    time.Time `db:"occurred_at"`
	ActorEmail    string    `db:"actor_email"`
	ActorRole     string    `db:"actor_role"`
	Action        string    `db:"action"`
	EntityType    string    `db:"entity_type"`
	EntityID      string    `db:"entity_id"`
	SchemaVersion int       `db:"schema_version"`
	Metadata      string    `db:"metadata"`
}

func (r *row) event() *audit.Event {
	return &audit.Event{
		ID:            r.ID,
		Sequence:      r.Sequence,
		Timestamp:     r.OccurredAt.UTC(),
		ActorEmail:    r.ActorEmail,
		ActorRole:     identity.Role(r.ActorRole),
		Action:        audit.Action(r.Action),
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		SchemaVersion: r.SchemaVersion,
		Metadata:      json.RawMessage(r.Metadata),
	}
}

// Log persists audit events in the audit_events table.
type Log struct {
	db *sqlx.DB
}

var _ auditlog.Log = (*Log)(nil)

// New returns a log over db; the schema must already be migrated.
func New(db *sqlx.DB) *Log {
	return &Log{db: db}
}

func (l *Log) Append(ctx context.Context, events ...*audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	auditlog.Prepare(events)
	query := l.db.Rebind(`INSERT INTO audit_events (id, occurred_at, actor_email, actor_role, action, entity_type, entity_id, schema_version, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING sequence`)
	sequences := make([]int64, len(events))
	err := sqldb.InTx(ctx, l.db, func(ctx context.Context) error {
		exec := sqldb.Executor(ctx, l.db)
		for i, e := range events {
			metadata := string(e.Metadata)
			if metadata == "" {
				metadata = "{}"
			}
			err := sqlx.GetContext(ctx, exec, &sequences[i], query,
				e.ID,
				e.Timestamp,
				e.ActorEmail,
				string(e.ActorRole),
				string(e.Action),
				e.EntityType,
				e.EntityID,
				e.SchemaVersion,
				metadata,
			)
			if err != nil {
				return fmt.Errorf("failed to insert %s event: %w", e.Action, err)
			}
		}
		return nil
	})
	if err != nil {
		return fault.NewUnavailableError("append audit events", err)
	}
	for i, e := range events {
		e.Sequence = sequences[i]
	}
	return nil
}

func (l *Log) List(ctx context.Context, filter *auditlog.Filter) (*auditlog.Page, error) {
	var where []string
	var args []interface{}
	if filter != nil && filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter != nil && filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	clause := ""
	if len(where) > 0 {
		clause = ` WHERE ` + strings.Join(where, " AND ")
	}
	exec := sqldb.Executor(ctx, l.db)
	page := &auditlog.Page{Items: []*audit.Event{}}
	if err := sqlx.GetContext(ctx, exec, &page.Total, l.db.Rebind(`SELECT COUNT(*) FROM audit_events`+clause), args...); err != nil {
		return nil, fault.NewUnavailableError("count audit events", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM audit_events%s ORDER BY sequence DESC LIMIT %d`, eventColumns, clause, filter.EffectiveLimit())
	var rows []*row
	if err := sqlx.SelectContext(ctx, exec, &rows, l.db.Rebind(query), args...); err != nil {
		return nil, fault.NewUnavailableError("list audit events", err)
	}
	for _, r := range rows {
		page.Items = append(page.Items, r.event())
	}
	return page, nil
}
