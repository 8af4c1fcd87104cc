package approval

import (
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/policy"
)

// Quorum is the evaluation of a request's effective decisions.
type Quorum struct {
	Status    access.Status
	Decisions map[identity.Role]access.Decision
	Pending   []identity.Role
}

// Evaluate computes the status implied by approvals under p. Only the most
// recent approval of each role counts. A rejection wins over approvals; in
// quorum mode every required role must approve, in single mode the one
// decision settles the request.
func Evaluate(p *policy.Policy, approvals []*access.Approval) *Quorum {
	ret := &Quorum{Status: access.StatusPending, Decisions: access.DecisionMap(approvals), Pending: []identity.Role{}}
	for _, decision := range ret.Decisions {
		if decision == access.DecisionRejected {
			ret.Status = access.StatusRejected
			return ret
		}
	}
	if p.Mode == policy.ModeSingle {
		if len(ret.Decisions) > 0 {
			ret.Status = access.StatusApproved
			return ret
		}
		ret.Pending = append(ret.Pending, p.Required()...)
		return ret
	}
	for _, role := range p.Required() {
		if ret.Decisions[role] != access.DecisionApproved {
			ret.Pending = append(ret.Pending, role)
		}
	}
	if len(ret.Pending) == 0 {
		ret.Status = access.StatusApproved
	}
	return ret
}
