package access

import (
	"strings"
	"time"

	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

// EntityType names access requests in the audit log.
const EntityType = "access_request"

// Request is a request for access to a linked resource.
type Request struct {
	ID             string      `json:"id" db:"id"`
	RequesterEmail string      `json:"requester_email" db:"requester_email"`
	LinkedResource string      `json:"linked_resource" db:"linked_resource"`
	AccessLevel    AccessLevel `json:"access_level" db:"access_level"`
	Reason         string      `json:"reason" db:"reason"`
	DataOwner      string      `json:"data_owner,omitempty" db:"data_owner"`
	DataSteward    string      `json:"data_steward,omitempty" db:"data_steward"`
	Status         Status      `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	DecidedBy      string      `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt      *time.Time  `json:"decided_at,omitempty" db:"decided_at"`
	DecisionReason string      `json:"decision_reason,omitempty" db:"decision_reason"`
}

// Resolution describes the transition that resolves a request.
type Resolution struct {
	DecidedBy string
	Reason    string
	At        time.Time
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	ret := *r
	if r.DecidedAt != nil {
		at := *r.DecidedAt
		ret.DecidedAt = &at
	}
	return &ret
}

// Normalize trims free-text fields and lower-cases emails.
func (r *Request) Normalize() {
	r.RequesterEmail = identity.NormalizeEmail(r.RequesterEmail)
	r.DataOwner = identity.NormalizeEmail(r.DataOwner)
	r.DataSteward = identity.NormalizeEmail(r.DataSteward)
	r.LinkedResource = strings.TrimSpace(r.LinkedResource)
	r.Reason = strings.TrimSpace(r.Reason)
	if r.AccessLevel != "" {
		r.AccessLevel = AccessLevel(strings.ToUpper(strings.TrimSpace(string(r.AccessLevel))))
	}
}

// Validate checks required fields; requireOwner demands a designated data owner.
func (r *Request) Validate(requireOwner bool) error {
	var missing []string
	if r.LinkedResource == "" {
		missing = append(missing, "linked_resource")
	}
	if r.Reason == "" {
		missing = append(missing, "reason")
	}
	if r.RequesterEmail == "" {
		missing = append(missing, "requester_email")
	}
	if r.AccessLevel == "" {
		missing = append(missing, "access_level")
	}
	if requireOwner && r.DataOwner == "" {
		missing = append(missing, "data_owner")
	}
	if len(missing) > 0 {
		return fault.NewMissingFieldsError(missing...)
	}
	if _, err := ParseAccessLevel(string(r.AccessLevel)); err != nil {
		return err
	}
	return nil
}

// IsApprover reports whether email is one of the request's designated approvers.
func (r *Request) IsApprover(email string) bool {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return false
	}
	return r.DataOwner == email || r.DataSteward == email
}

// Resolve applies a terminal transition.
func (r *Request) Resolve(status Status, resolution *Resolution) error {
	if !CanTransition(r.Status, status) {
		return fault.NewConflictError("access request %s is %s, cannot move to %s", r.ID, r.Status, status)
	}
	r.Status = status
	if resolution != nil {
		at := resolution.At
		r.DecidedAt = &at
		r.DecidedBy = resolution.DecidedBy
		r.DecisionReason = resolution.Reason
		r.UpdatedAt = at
	}
	return nil
}
