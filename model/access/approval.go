package access

import (
	"time"

	"github.com/viant/accessflow/model/identity"
)

// Approval is one recorded decision of a role on a request. Approvals form an
// append-only history; the latest approval of a role is its effective one.
type Approval struct {
	ID            string        `json:"id" db:"id"`
	RequestID     string        `json:"request_id" db:"request_id"`
	Sequence      int64         `json:"sequence" db:"sequence"`
	Role          identity.Role `json:"role" db:"role"`
	ApproverEmail string        `json:"approver_email" db:"approver_email"`
	Decision      Decision      `json:"decision" db:"decision"`
	Comment       string        `json:"comment,omitempty" db:"comment"`
	DecidedAt     time.Time     `json:"decided_at" db:"decided_at"`
}

// Effective returns the most recent approval of every role.
func Effective(approvals []*Approval) map[identity.Role]*Approval {
	ret := make(map[identity.Role]*Approval, len(approvals))
	for _, a := range approvals {
		if prev, ok := ret[a.Role]; ok && prev.Sequence > a.Sequence {
			continue
		}
		ret[a.Role] = a
	}
	return ret
}

// DecisionMap flattens effective approvals into role -> decision.
func DecisionMap(approvals []*Approval) map[identity.Role]Decision {
	effective := Effective(approvals)
	ret := make(map[identity.Role]Decision, len(effective))
	for role, a := range effective {
		ret[role] = a.Decision
	}
	return ret
}
