package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "validation", err: NewMissingFieldsError("reason"), expected: Validation},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", NewNotFoundError("access request", "r1")), expected: NotFound},
		{name: "plain error", err: errors.New("boom"), expected: Internal},
		{name: "unavailable", err: Wrap("save", errors.New("disk full")), expected: Unavailable},
		{name: "wrap keeps kind", err: Wrap("save", NewConflictError("already decided")), expected: Conflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, KindOf(tc.err))
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("decide: %w", NewConflictError("request %s is %s", "r1", "APPROVED"))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "decide: request r1 is APPROVED", err.Error())
}

func TestError_Fields(t *testing.T) {
	err := NewMissingFieldsError("linked_resource", "reason")
	assert.Equal(t, []string{"linked_resource", "reason"}, FieldsOf(err))
	assert.Equal(t, "missing required fields: linked_resource, reason", err.Error())
	assert.Nil(t, FieldsOf(errors.New("x")))
}
