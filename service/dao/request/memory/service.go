package memory

import (
	"context"
	"sync"

	"github.com/viant/accessflow/internal/clock"
	"github.com/viant/accessflow/internal/idgen"
	"github.com/viant/accessflow/internal/keylock"
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/dao"
	"github.com/viant/accessflow/service/dao/criteria"
	"github.com/viant/accessflow/service/dao/request"
	"github.com/viant/accessflow/service/dao/store"
)

// Service implements an in-memory, thread-safe request store. All API
// methods work with copies to eliminate data races between goroutines.
type Service struct {
	requests  *store.MemoryStore[string, access.Request]
	approvals map[string][]*access.Approval
	sequence  int64
	locks     *keylock.Locker
	mux       sync.RWMutex
}

var _ request.Store = (*Service)(nil)

type unitKey struct{ service *Service }

// unit collects compensating actions of writes made inside Atomic.
type unit struct {
	mu   sync.Mutex
	undo []func()
}

func (u *unit) push(fn func()) {
	u.mu.Lock()
	u.undo = append(u.undo, fn)
	u.mu.Unlock()
}

func (u *unit) rollback() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

func (s *Service) unit(ctx context.Context) *unit {
	u, _ := ctx.Value(unitKey{service: s}).(*unit)
	return u
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

	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, _ := s.requests.Load(ctx, record.ID); existing != nil {
		return nil, fault.NewConflictError("access request %s already exists", record.ID)
	}
	if err := s.requests.Save(ctx, record); err != nil {
		return nil, err
	}
	if u := s.unit(ctx); u != nil {
		id := record.ID
		u.push(func() { _ = s.requests.Delete(context.Background(), id) })
	}
	return record.Clone(), nil
}

func (s *Service) Get(ctx context.Context, id string) (*access.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	defer s.mux.RUnlock()
	r, _ := s.requests.Load(ctx, id)
	if r == nil {
		return nil, fault.NewNotFoundError(access.EntityType, id)
	}
	return r.Clone(), nil
}

func (s *Service) List(ctx context.Context, filter *request.Filter) ([]*access.Request, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	matched, err := s.requests.List(ctx, filter.Parameters()...)
	if err != nil {
		return nil, err
	}
	limit := filter.EffectiveLimit()
	out := make([]*access.Request, 0, min(limit, len(matched)))
	for i := len(matched) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, matched[i].Clone())
	}
	return out, nil
}

func (s *Service) Transition(ctx context.Context, id string, to access.Status, resolution *access.Resolution) (*access.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	current, _ := s.requests.Load(ctx, id)
	if current == nil {
		return nil, fault.NewNotFoundError(access.EntityType, id)
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
	if err := s.requests.Save(ctx, next); err != nil {
		return nil, err
	}
	if u := s.unit(ctx); u != nil {
		u.push(func() { _ = s.requests.Save(context.Background(), current) })
	}
	return next.Clone(), nil
}

func (s *Service) RecordApproval(ctx context.Context, approval *access.Approval) error {
	if approval == nil {
		return dao.ErrNilEntity
	}
	if approval.RequestID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if r, _ := s.requests.Load(ctx, approval.RequestID); r == nil {
		return fault.NewNotFoundError(access.EntityType, approval.RequestID)
	}
	if approval.ID == "" {
		approval.ID = idgen.New()
	}
	if approval.DecidedAt.IsZero() {
		approval.DecidedAt = clock.Now()
	}
	approval.ApproverEmail = identity.NormalizeEmail(approval.ApproverEmail)
	s.sequence++
	approval.Sequence = s.sequence
	record := *approval
	history := s.approvals[approval.RequestID]
	size := len(history)
	s.approvals[approval.RequestID] = append(history, &record)
	if u := s.unit(ctx); u != nil {
		requestID := approval.RequestID
		u.push(func() {
			if size == 0 {
				delete(s.approvals, requestID)
				return
			}
			s.approvals[requestID] = s.approvals[requestID][:size]
		})
	}
	return nil
}

func (s *Service) Approvals(_ context.Context, requestID string) ([]*access.Approval, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	history := s.approvals[requestID]
	out := make([]*access.Approval, 0, len(history))
	for _, a := range history {
		record := *a
		out = append(out, &record)
	}
	return out, nil
}

// Atomic serializes fn on id and reverts the unit's writes when fn fails.
// A nested call joins the enclosing unit.
func (s *Service) Atomic(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if id != "" && !keylock.Held(ctx, s.locks, id) {
		unlock := s.locks.Lock(id)
		defer unlock()
		ctx = keylock.WithHeld(ctx, s.locks, id)
	}
	if s.unit(ctx) != nil {
		return fn(ctx)
	}
	u := &unit{}
	ctx = context.WithValue(ctx, unitKey{service: s}, u)
	if err := fn(ctx); err != nil {
		s.mux.Lock()
		u.rollback()
		s.mux.Unlock()
		return err
	}
	return nil
}

func New() *Service {
	return &Service{
		requests:  store.NewFilteredMemoryStore[string, access.Request](func(r *access.Request) string { return r.ID }, criteria.MatchRequest),
		approvals: map[string][]*access.Approval{},
		locks:     keylock.New(),
	}
}
