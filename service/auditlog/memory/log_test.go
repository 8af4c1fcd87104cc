package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/auditlog/logtest"
)

func TestLog(t *testing.T) {
	logtest.Run(t, New(0))
}

func TestLog_Eviction(t *testing.T) {
	ctx := context.Background()
	log := New(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, &audit.Event{Action: audit.ActionDecide, EntityID: fmt.Sprintf("req-%d", i)}))
	}
	assert.Equal(t, 3, log.Len())

	page, err := log.List(ctx, &auditlog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	var ids []string
	for _, e := range page.Items {
		ids = append(ids, e.EntityID)
	}
	assert.Equal(t, []string{"req-4", "req-3", "req-2"}, ids)
	assert.EqualValues(t, 5, page.Items[0].Sequence)
}

func TestLog_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	log := New(0)
	e := &audit.Event{Action: audit.ActionDecide, EntityID: "req"}
	require.NoError(t, log.Append(ctx, e))
	e.EntityID = "mutated"

	page, err := log.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "req", page.Items[0].EntityID)
	page.Items[0].EntityID = "mutated"

	page, err = log.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "req", page.Items[0].EntityID)
}
