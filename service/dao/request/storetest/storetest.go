// Package storetest holds behaviour tests shared by request store
// implementations.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/dao/request"
)

// Factory returns an empty store.
type Factory func(t *testing.T) request.Store

func newRequest(resource string) *access.Request {
	return &access.Request{
		RequesterEmail: "Viewer@Company.com",
		LinkedResource: resource,
		AccessLevel:    access.AccessReader,
		Reason:         "quarterly report",
		DataOwner:      "data.owner@company.com",
		DataSteward:    "steward@company.com",
	}
}

// Run executes the shared store behaviour suite.
func Run(t *testing.T, factory Factory) {
	t.Run("create", func(t *testing.T) { testCreate(t, factory(t)) })
	t.Run("list", func(t *testing.T) { testList(t, factory(t)) })
	t.Run("transition", func(t *testing.T) { testTransition(t, factory(t)) })
	t.Run("approvals", func(t *testing.T) { testApprovals(t, factory(t)) })
	t.Run("atomic rollback", func(t *testing.T) { testAtomicRollback(t, factory(t)) })
	t.Run("racing transitions", func(t *testing.T) { testRacingTransitions(t, factory(t)) })
}

func testCreate(t *testing.T, s request.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, &access.Request{RequesterEmail: "viewer@company.com", AccessLevel: access.AccessReader})
	require.Error(t, err)
	assert.Equal(t, fault.Validation, fault.KindOf(err))
	assert.Equal(t, []string{"linked_resource", "reason"}, fault.FieldsOf(err))

	created, err := s.Create(ctx, newRequest("//bigquery.googleapis.com/projects/p/datasets/d/tables/t"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, access.StatusPending, created.Status)
	assert.Equal(t, "viewer@company.com", created.RequesterEmail)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.DecidedAt)

	loaded, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, created.LinkedResource, loaded.LinkedResource)
	assert.Equal(t, created.DataSteward, loaded.DataSteward)
	assert.True(t, created.CreatedAt.Equal(loaded.CreatedAt))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)

	duplicate := newRequest("other")
	duplicate.ID = created.ID
	_, err = s.Create(ctx, duplicate)
	assert.ErrorIs(t, err, fault.ErrConflict)
}

func testList(t *testing.T, s request.Store) {
	ctx := context.Background()
	var ids []string
	for _, resource := range []string{"r1", "r2", "r3"} {
		r := newRequest(resource)
		if resource == "r2" {
			r.DataOwner = "other.owner@company.com"
			r.DataSteward = ""
		}
		created, err := s.Create(ctx, r)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	_, err := s.Transition(ctx, ids[0], access.StatusApproved, &access.Resolution{DecidedBy: "admin@company.com"})
	require.NoError(t, err)

	testCases := []struct {
		name     string
		filter   *request.Filter
		expected []string
	}{
		{name: "all newest first", filter: nil, expected: []string{ids[2], ids[1], ids[0]}},
		{name: "pending", filter: &request.Filter{Status: access.StatusPending}, expected: []string{ids[2], ids[1]}},
		{name: "approved", filter: &request.Filter{Status: access.StatusApproved}, expected: []string{ids[0]}},
		{name: "steward", filter: &request.Filter{ApproverEmail: "steward@company.com"}, expected: []string{ids[2], ids[0]}},
		{name: "owner", filter: &request.Filter{ApproverEmail: "OTHER.owner@company.com"}, expected: []string{ids[1]}},
		{name: "limit", filter: &request.Filter{Limit: 1}, expected: []string{ids[2]}},
		{name: "combined", filter: &request.Filter{Status: access.StatusPending, ApproverEmail: "data.owner@company.com"}, expected: []string{ids[2]}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := s.List(ctx, tc.filter)
			require.NoError(t, err)
			actual := make([]string, 0, len(items))
			for _, item := range items {
				actual = append(actual, item.ID)
			}
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func testTransition(t *testing.T, s request.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, newRequest("r"))
	require.NoError(t, err)

	_, err = s.Transition(ctx, "missing", access.StatusApproved, nil)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = s.Transition(ctx, created.ID, access.StatusPending, nil)
	assert.ErrorIs(t, err, fault.ErrConflict)

	resolved, err := s.Transition(ctx, created.ID, access.StatusRejected, &access.Resolution{DecidedBy: "steward@company.com", Reason: "not needed"})
	require.NoError(t, err)
	assert.Equal(t, access.StatusRejected, resolved.Status)
	assert.Equal(t, "steward@company.com", resolved.DecidedBy)
	assert.Equal(t, "not needed", resolved.DecisionReason)
	require.NotNil(t, resolved.DecidedAt)

	_, err = s.Transition(ctx, created.ID, access.StatusApproved, nil)
	assert.ErrorIs(t, err, fault.ErrConflict)

	loaded, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, access.StatusRejected, loaded.Status)
	require.NotNil(t, loaded.DecidedAt)
}

func testApprovals(t *testing.T, s request.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, newRequest("r"))
	require.NoError(t, err)

	err = s.RecordApproval(ctx, &access.Approval{RequestID: "missing", Role: identity.RoleSteward, Decision: access.DecisionApproved})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	first := &access.Approval{RequestID: created.ID, Role: identity.RoleSteward, ApproverEmail: "steward@company.com", Decision: access.DecisionRejected}
	second := &access.Approval{RequestID: created.ID, Role: identity.RoleSteward, ApproverEmail: "steward@company.com", Decision: access.DecisionApproved, Comment: "changed my mind"}
	require.NoError(t, s.RecordApproval(ctx, first))
	require.NoError(t, s.RecordApproval(ctx, second))
	assert.NotEmpty(t, first.ID)
	assert.Greater(t, second.Sequence, first.Sequence)

	history, err := s.Approvals(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, "changed my mind", history[1].Comment)
	assert.Equal(t, access.DecisionApproved, access.DecisionMap(history)[identity.RoleSteward])

	empty, err := s.Approvals(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAtomicRollback(t *testing.T, s request.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, newRequest("r"))
	require.NoError(t, err)

	boom := errors.New("boom")
	var inner string
	err = s.Atomic(ctx, created.ID, func(ctx context.Context) error {
		if err := s.RecordApproval(ctx, &access.Approval{RequestID: created.ID, Role: identity.RoleDataOwner, ApproverEmail: "data.owner@company.com", Decision: access.DecisionApproved}); err != nil {
			return err
		}
		if _, err := s.Transition(ctx, created.ID, access.StatusApproved, &access.Resolution{DecidedBy: "data.owner@company.com"}); err != nil {
			return err
		}
		extra, err := s.Create(ctx, newRequest("inner"))
		if err != nil {
			return err
		}
		inner = extra.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, access.StatusPending, loaded.Status)
	history, err := s.Approvals(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = s.Get(ctx, inner)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	err = s.Atomic(ctx, created.ID, func(ctx context.Context) error {
		_, err := s.Transition(ctx, created.ID, access.StatusApproved, nil)
		return err
	})
	require.NoError(t, err)
	loaded, err = s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, access.StatusApproved, loaded.Status)
}

func testRacingTransitions(t *testing.T, s request.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, newRequest("r"))
	require.NoError(t, err)

	const workers = 8
	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := access.StatusApproved
			if i%2 == 1 {
				to = access.StatusRejected
			}
			err := s.Atomic(ctx, created.ID, func(ctx context.Context) error {
				current, err := s.Get(ctx, created.ID)
				if err != nil {
					return err
				}
				if current.Status != access.StatusPending {
					return fault.NewConflictError("already %s", current.Status)
				}
				_, err = s.Transition(ctx, created.ID, to, nil)
				return err
			})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, fault.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, workers-1, conflicts)
}
