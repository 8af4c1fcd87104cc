package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

func TestPolicy_AuthorizeQuorum(t *testing.T) {
	p := Default()
	request := &access.Request{ID: "r1", Status: access.StatusPending, DataOwner: "data.owner@company.com"}

	testCases := []struct {
		name      string
		actor     *identity.Identity
		requested string
		expected  identity.Role
		kind      fault.Kind
	}{
		{name: "owner implicit role", actor: &identity.Identity{Email: "data.owner@company.com", Role: identity.RoleDataOwner}, expected: identity.RoleDataOwner},
		{name: "steward alias", actor: &identity.Identity{Email: "steward@company.com", Role: identity.RoleSteward}, requested: "DATA_STEWARD", expected: identity.RoleSteward},
		{name: "admin names role", actor: &identity.Identity{Email: "admin@company.com", Role: identity.RoleAdmin}, requested: "STEWARD", expected: identity.RoleSteward},
		{name: "admin without role", actor: &identity.Identity{Email: "admin@company.com", Role: identity.RoleAdmin}, kind: fault.Validation},
		{name: "viewer implicit role", actor: &identity.Identity{Email: "viewer@company.com", Role: identity.RoleViewer}, kind: fault.Forbidden},
		{name: "viewer claims owner", actor: &identity.Identity{Email: "viewer@company.com", Role: identity.RoleViewer}, requested: "DATA_OWNER", kind: fault.Forbidden},
		{name: "unrecognized role", actor: &identity.Identity{Email: "steward@company.com", Role: identity.RoleSteward}, requested: "AUDITOR", kind: fault.Validation},
		{name: "no identity", actor: nil, kind: fault.Unauthenticated},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			role, err := p.Authorize(tc.actor, request, tc.requested)
			if tc.expected == "" {
				require.Error(t, err)
				assert.Equal(t, tc.kind, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, role)
		})
	}
}

func TestPolicy_AuthorizeSingle(t *testing.T) {
	p := &Policy{Mode: ModeSingle, Redecision: RedecisionOverwrite}
	request := &access.Request{ID: "r1", DataOwner: "data.owner@company.com"}

	role, err := p.Authorize(&identity.Identity{Email: "Data.Owner@company.com", Role: identity.RoleViewer}, request, "")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleDataOwner, role)

	role, err = p.Authorize(&identity.Identity{Email: "admin@company.com", Role: identity.RoleAdmin}, request, "")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, role)

	_, err = p.Authorize(&identity.Identity{Email: "other.owner@company.com", Role: identity.RoleDataOwner}, request, "")
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))
	assert.True(t, p.RequiresOwner())
}

func TestPolicy_EnforceDesignated(t *testing.T) {
	p := Default()
	p.EnforceDesignated = true
	request := &access.Request{ID: "r1", DataOwner: "data.owner@company.com"}

	_, err := p.Authorize(&identity.Identity{Email: "another.owner@company.com", Role: identity.RoleDataOwner}, request, "")
	assert.Equal(t, fault.Forbidden, fault.KindOf(err))

	role, err := p.Authorize(&identity.Identity{Email: "steward@company.com", Role: identity.RoleSteward}, request, "")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleSteward, role)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.Error(t, (&Policy{Mode: "vote", Redecision: RedecisionOverwrite}).Validate())
	assert.Error(t, (&Policy{Mode: ModeQuorum, Redecision: RedecisionOverwrite}).Validate())
	assert.Error(t, (&Policy{Mode: ModeQuorum, RequiredRoles: []identity.Role{identity.RoleAdmin}, Redecision: RedecisionOverwrite}).Validate())
	assert.Error(t, (&Policy{Mode: ModeSingle, Redecision: "ignore"}).Validate())
}

func TestConfigRoundTrip(t *testing.T) {
	p := &Policy{
		Mode:          ModeQuorum,
		RequiredRoles: []identity.Role{identity.RoleDataOwner},
		DecisionRoles: []identity.Role{identity.RoleSteward},
		Redecision:    RedecisionReject,
	}
	assert.EqualValues(t, p, FromConfig(ToConfig(p)))
	assert.Equal(t, []identity.Role{identity.RoleDataOwner, identity.RoleSteward}, p.Roles())
	assert.Equal(t, []identity.Role{identity.RoleDataOwner}, p.Required())
	assert.True(t, p.IsDecisionRole(identity.RoleSteward))
	assert.False(t, p.IsDecisionRole(identity.RoleViewer))
}

func TestLoad(t *testing.T) {
	location := filepath.Join(t.TempDir(), "policy.yaml")
	document := "mode: quorum\nrequiredRoles: [data_owner, data_steward, ADMIN_DELEGATE]\nredecision: reject\n"
	require.NoError(t, os.WriteFile(location, []byte(document), 0o644))

	p, err := Load(context.Background(), afs.New(), location)
	require.NoError(t, err)
	assert.Equal(t, []identity.Role{identity.RoleDataOwner, identity.RoleSteward, "ADMIN_DELEGATE"}, p.RequiredRoles)
	assert.Equal(t, RedecisionReject, p.Redecision)

	_, err = Parse([]byte("mode: everyone\n"))
	assert.Error(t, err)
}
