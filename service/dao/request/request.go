// Package request defines the access request store. Implementations keep
// requests and their approval history and expose Atomic, a serialized unit
// of work per request id.
package request

import (
	"context"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/service/dao"
)

const (
	// DefaultLimit is used when a list filter names no limit.
	DefaultLimit = 50
	// MaxLimit bounds a single list page.
	MaxLimit = 500
)

// Filter narrows List results.
type Filter struct {
	Status        access.Status
	ApproverEmail string
	Limit         int
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

// Parameters converts the filter into dao list parameters.
func (f *Filter) Parameters() []*dao.Parameter {
	if f == nil {
		return nil
	}
	var ret []*dao.Parameter
	if f.Status != "" {
		ret = append(ret, dao.NewParameter(dao.ParamStatus, string(f.Status)))
	}
	if f.ApproverEmail != "" {
		ret = append(ret, dao.NewParameter(dao.ParamApprover, f.ApproverEmail))
	}
	return ret
}

// Store persists access requests and approvals.
type Store interface {
	// Create validates shape, assigns an id when empty and persists the
	// request with status PENDING and fresh timestamps.
	Create(ctx context.Context, r *access.Request) (*access.Request, error)

	// Get returns a request or a NotFound fault.
	Get(ctx context.Context, id string) (*access.Request, error)

	// List returns matching requests, newest created first.
	List(ctx context.Context, filter *Filter) ([]*access.Request, error)

	// Transition moves a PENDING request to a terminal status. Any other
	// current status yields a Conflict fault.
	Transition(ctx context.Context, id string, to access.Status, resolution *access.Resolution) (*access.Request, error)

	// RecordApproval appends an approval, assigning id, sequence and time.
	RecordApproval(ctx context.Context, approval *access.Approval) error

	// Approvals returns a request's approval history in insertion order.
	Approvals(ctx context.Context, requestID string) ([]*access.Approval, error)

	// Atomic runs fn as one unit of work serialized on id. Store writes made
	// with the context passed to fn are discarded when fn fails. An empty id
	// runs the unit without a per-request lock.
	Atomic(ctx context.Context, id string, fn func(ctx context.Context) error) error
}
