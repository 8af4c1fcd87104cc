package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/policy"
)

func approval(role identity.Role, decision access.Decision, sequence int64) *access.Approval {
	return &access.Approval{ID: string(role) + "-" + string(decision), Role: role, Decision: decision, Sequence: sequence}
}

func TestEvaluate(t *testing.T) {
	quorum := policy.Default()
	quorum.DecisionRoles = []identity.Role{identity.RoleAdmin}
	single := &policy.Policy{Mode: policy.ModeSingle, Redecision: policy.RedecisionOverwrite}

	var testCases = []struct {
		description string
		policy      *policy.Policy
		approvals   []*access.Approval
		expect      access.Status
		pending     []identity.Role
	}{
		{
			description: "quorum without decisions",
			policy:      quorum,
			expect:      access.StatusPending,
			pending:     []identity.Role{identity.RoleDataOwner, identity.RoleSteward},
		},
		{
			description: "quorum with owner approval only",
			policy:      quorum,
			approvals:   []*access.Approval{approval(identity.RoleDataOwner, access.DecisionApproved, 1)},
			expect:      access.StatusPending,
			pending:     []identity.Role{identity.RoleSteward},
		},
		{
			description: "quorum with every required role approved",
			policy:      quorum,
			approvals: []*access.Approval{
				approval(identity.RoleDataOwner, access.DecisionApproved, 1),
				approval(identity.RoleSteward, access.DecisionApproved, 2),
			},
			expect:  access.StatusApproved,
			pending: []identity.Role{},
		},
		{
			description: "rejection wins over approvals",
			policy:      quorum,
			approvals: []*access.Approval{
				approval(identity.RoleDataOwner, access.DecisionApproved, 1),
				approval(identity.RoleSteward, access.DecisionRejected, 2),
			},
			expect:  access.StatusRejected,
			pending: []identity.Role{},
		},
		{
			description: "non required role rejection rejects",
			policy:      quorum,
			approvals:   []*access.Approval{approval(identity.RoleAdmin, access.DecisionRejected, 1)},
			expect:      access.StatusRejected,
			pending:     []identity.Role{},
		},
		{
			description: "non required role approval does not count",
			policy:      quorum,
			approvals: []*access.Approval{
				approval(identity.RoleAdmin, access.DecisionApproved, 1),
				approval(identity.RoleDataOwner, access.DecisionApproved, 2),
			},
			expect:  access.StatusPending,
			pending: []identity.Role{identity.RoleSteward},
		},
		{
			description: "latest decision of a role is effective",
			policy:      quorum,
			approvals: []*access.Approval{
				approval(identity.RoleDataOwner, access.DecisionRejected, 1),
				approval(identity.RoleDataOwner, access.DecisionApproved, 3),
				approval(identity.RoleSteward, access.DecisionApproved, 2),
			},
			expect:  access.StatusApproved,
			pending: []identity.Role{},
		},
		{
			description: "single without decision",
			policy:      single,
			expect:      access.StatusPending,
			pending:     []identity.Role{identity.RoleDataOwner},
		},
		{
			description: "single approval settles",
			policy:      single,
			approvals:   []*access.Approval{approval(identity.RoleAdmin, access.DecisionApproved, 1)},
			expect:      access.StatusApproved,
			pending:     []identity.Role{},
		},
		{
			description: "single rejection settles",
			policy:      single,
			approvals:   []*access.Approval{approval(identity.RoleDataOwner, access.DecisionRejected, 1)},
			expect:      access.StatusRejected,
			pending:     []identity.Role{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual := Evaluate(testCase.policy, testCase.approvals)
			assert.Equal(t, testCase.expect, actual.Status)
			assert.Equal(t, testCase.pending, actual.Pending)
			assert.Len(t, actual.Decisions, len(access.Effective(testCase.approvals)))
		})
	}
}
