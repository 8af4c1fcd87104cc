// Package logtest holds behaviour tests shared by audit log implementations.
package logtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/auditlog"
)

// Run executes the shared audit log behaviour suite against a fresh log.
func Run(t *testing.T, log auditlog.Log) {
	ctx := context.Background()
	actor := &identity.Identity{Email: "steward@company.com", Role: identity.RoleSteward}

	created, err := audit.NewEvent(actor, "req-1", &audit.CreateRequestMetadata{LinkedResource: "r", AccessLevel: access.AccessReader, RequesterEmail: "viewer@company.com"})
	require.NoError(t, err)
	require.NoError(t, log.Append(ctx, created))
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Timestamp.IsZero())

	decide, err := audit.NewEvent(actor, "req-1", &audit.DecideMetadata{Role: identity.RoleSteward, Decision: access.DecisionRejected})
	require.NoError(t, err)
	change, err := audit.NewEvent(actor, "req-1", &audit.StatusChangeMetadata{From: access.StatusPending, To: access.StatusRejected})
	require.NoError(t, err)
	other, err := audit.NewEvent(actor, "req-2", &audit.CreateRequestMetadata{LinkedResource: "r2"})
	require.NoError(t, err)
	require.NoError(t, log.Append(ctx, decide, change))
	require.NoError(t, log.Append(ctx, other))
	require.NoError(t, log.Append(ctx))

	assert.Greater(t, decide.Sequence, created.Sequence)
	assert.Greater(t, change.Sequence, decide.Sequence)
	assert.Greater(t, other.Sequence, change.Sequence)

	testCases := []struct {
		name     string
		filter   *auditlog.Filter
		expected []string
		total    int
	}{
		{name: "all newest first", expected: []string{other.ID, change.ID, decide.ID, created.ID}, total: 4},
		{name: "by action", filter: &auditlog.Filter{Action: audit.ActionCreateRequest}, expected: []string{other.ID, created.ID}, total: 2},
		{name: "by entity", filter: &auditlog.Filter{EntityID: "req-1"}, expected: []string{change.ID, decide.ID, created.ID}, total: 3},
		{name: "limit", filter: &auditlog.Filter{Limit: 2}, expected: []string{other.ID, change.ID}, total: 4},
		{name: "no match", filter: &auditlog.Filter{Action: audit.ActionProvisionResult}, expected: []string{}, total: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := log.List(ctx, tc.filter)
			require.NoError(t, err)
			actual := make([]string, 0, len(page.Items))
			for _, item := range page.Items {
				actual = append(actual, item.ID)
			}
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, tc.total, page.Total)
		})
	}

	page, err := log.List(ctx, &auditlog.Filter{Action: audit.ActionStatusChange})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	stored := page.Items[0]
	assert.Equal(t, "steward@company.com", stored.ActorEmail)
	assert.Equal(t, identity.RoleSteward, stored.ActorRole)
	assert.Equal(t, access.EntityType, stored.EntityType)
	assert.Equal(t, audit.SchemaVersion, stored.SchemaVersion)
	metadata, err := stored.Decode()
	require.NoError(t, err)
	statusChange, ok := metadata.(*audit.StatusChangeMetadata)
	require.True(t, ok)
	assert.Equal(t, access.StatusRejected, statusChange.To)
}
