// Package sql implements the request store on a relational database.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/viant/accessflow/internal/clock"
	"github.com/viant/accessflow/internal/idgen"
	"github.com/viant/accessflow/internal/keylock"
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/dao"
	"github.com/viant/accessflow/service/dao/request"
	"github.com/viant/accessflow/service/dao/sqldb"
)

const requestColumns = `id, requester_email, linked_resource, access_level, reason, data_owner, data_steward, status, created_at, updated_at, decided_by, decided_at, decision_reason`

const approvalColumns = `sequence, id, request_id, role, approver_email, decision, comment, decided_at`

// Service persists requests and approvals with sqlx.
type Service struct {
	db    *sqlx.DB
	locks *keylock.Locker
}

var _ request.Store = (*Service)(nil)

func (s *Service) exec(ctx context.Context) sqlx.ExtContext {
	return sqldb.Executor(ctx, s.db)
}

func (s *Service) Create(ctx context.Context, r *access.Request) (*access.Request, error) {
	if r == nil {
		return nil, dao.ErrNilEntity
	}
	record := r.Clone()
	record.Normalize()
	if err := record.Validate(false); err != nil {
		return nil, err
	}
	if record.ID == "" {
		record.ID = idgen.New()
	}
	now := clock.Now()
	record.Status = access.StatusPending
	record.CreatedAt = now
	record.UpdatedAt = now
	record.DecidedAt = nil
	record.DecidedBy = ""
	record.DecisionReason = ""

	var exists int
	err := sqlx.GetContext(ctx, s.exec(ctx), &exists, s.db.Rebind(`SELECT COUNT(*) FROM access_requests WHERE id = ?`), record.ID)
	if err != nil {
		return nil, fault.NewUnavailableError("create access request", err)
	}
	if exists > 0 {
		return nil, fault.NewConflictError("access request %s already exists", record.ID)
	}
	query := s.db.Rebind(`INSERT INTO access_requests (` + requestColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.exec(ctx).ExecContext(ctx, query,
		record.ID,
		record.RequesterEmail,
		record.LinkedResource,
		string(record.AccessLevel),
		record.Reason,
		record.DataOwner,
		record.DataSteward,
		string(record.Status),
		record.CreatedAt,
		record.UpdatedAt,
		record.DecidedBy,
		record.DecidedAt,
		record.DecisionReason,
	)
	if err != nil {
		return nil, fault.NewUnavailableError("create access request", err)
	}
	return record, nil
}

func (s *Service) Get(ctx context.Context, id string) (*access.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var record access.Request
	err := sqlx.GetContext(ctx, s.exec(ctx), &record, s.db.Rebind(`SELECT `+requestColumns+` FROM access_requests WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NewNotFoundError(access.EntityType, id)
	}
	if err != nil {
		return nil, fault.NewUnavailableError("load access request", err)
	}
	normalizeTimes(&record)
	return &record, nil
}

func (s *Service) List(ctx context.Context, filter *request.Filter) ([]*access.Request, error) {
	var where []string
	var args []interface{}
	if filter != nil && filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter != nil && filter.ApproverEmail != "" {
		email := identity.NormalizeEmail(filter.ApproverEmail)
		where = append(where, "(data_owner = ? OR data_steward = ?)")
		args = append(args, email, email)
	}
	query := `SELECT ` + requestColumns + ` FROM access_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY ordinal DESC LIMIT %d`, filter.EffectiveLimit())

	var records []*access.Request
	if err := sqlx.SelectContext(ctx, s.exec(ctx), &records, s.db.Rebind(query), args...); err != nil {
		return nil, fault.NewUnavailableError("list access requests", err)
	}
	for _, record := range records {
		normalizeTimes(record)
	}
	if records == nil {
		records = []*access.Request{}
	}
	return records, nil
}

func (s *Service) Transition(ctx context.Context, id string, to access.Status, resolution *access.Resolution) (*access.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if resolution == nil {
		resolution = &access.Resolution{}
	}
	if resolution.At.IsZero() {
		resolution.At = clock.Now()
	}
	if err := next.Resolve(to, resolution); err != nil {
		return nil, err
	}
	query := s.db.Rebind(`UPDATE access_requests SET status = ?, updated_at = ?, decided_by = ?, decided_at = ?, decision_reason = ? WHERE id = ? AND status = ?`)
	result, err := s.exec(ctx).ExecContext(ctx, query,
		string(next.Status),
		next.UpdatedAt,
		next.DecidedBy,
		next.DecidedAt,
		next.DecisionReason,
		id,
		string(access.StatusPending),
	)
	if err != nil {
		return nil, fault.NewUnavailableError("update access request", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fault.NewUnavailableError("update access request", err)
	}
	if affected == 0 {
		return nil, fault.NewConflictError("access request %s is no longer %s", id, access.StatusPending)
	}
	return next, nil
}

func (s *Service) RecordApproval(ctx context.Context, approval *access.Approval) error {
	if approval == nil {
		return dao.ErrNilEntity
	}
	if approval.RequestID == "" {
		return dao.ErrInvalidID
	}
	if _, err := s.Get(ctx, approval.RequestID); err != nil {
		return err
	}
	if approval.ID == "" {
		approval.ID = idgen.New()
	}
	if approval.DecidedAt.IsZero() {
		approval.DecidedAt = clock.Now()
	}
	approval.ApproverEmail = identity.NormalizeEmail(approval.ApproverEmail)
	query := s.db.Rebind(`INSERT INTO approvals (id, request_id, role, approver_email, decision, comment, decided_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING sequence`)
	err := sqlx.GetContext(ctx, s.exec(ctx), &approval.Sequence, query,
		approval.ID,
		approval.RequestID,
		string(approval.Role),
		approval.ApproverEmail,
		string(approval.Decision),
		approval.Comment,
		approval.DecidedAt,
	)
	if err != nil {
		return fault.NewUnavailableError("record approval", err)
	}
	return nil
}

func (s *Service) Approvals(ctx context.Context, requestID string) ([]*access.Approval, error) {
	var records []*access.Approval
	query := s.db.Rebind(`SELECT ` + approvalColumns + ` FROM approvals WHERE request_id = ? ORDER BY sequence`)
	if err := sqlx.SelectContext(ctx, s.exec(ctx), &records, query, requestID); err != nil {
		return nil, fault.NewUnavailableError("load approvals", err)
	}
	for _, record := range records {
		record.DecidedAt = record.DecidedAt.UTC()
	}
	if records == nil {
		records = []*access.Approval{}
	}
	return records, nil
}

// Atomic serializes fn on id and runs it in one transaction that SQL audit
// appends made with the unit's context join.
func (s *Service) Atomic(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if id != "" && !keylock.Held(ctx, s.locks, id) {
		unlock := s.locks.Lock(id)
		defer unlock()
		ctx = keylock.WithHeld(ctx, s.locks, id)
	}
	return sqldb.InTx(ctx, s.db, fn)
}

// DB returns the underlying database handle.
func (s *Service) DB() *sqlx.DB {
	return s.db
}

func normalizeTimes(r *access.Request) {
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if r.DecidedAt != nil {
		at := r.DecidedAt.UTC()
		r.DecidedAt = &at
	}
}

// New returns a store over db; the schema must already be migrated.
func New(db *sqlx.DB) *Service {
	return &Service{db: db, locks: keylock.New()}
}
