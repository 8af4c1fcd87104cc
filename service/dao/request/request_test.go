package request

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/accessflow/service/dao"
)

func TestFilter_EffectiveLimit(t *testing.T) {
	testCases := []struct {
		name     string
		filter   *Filter
		expected int
	}{
		{name: "nil", expected: DefaultLimit},
		{name: "zero", filter: &Filter{}, expected: DefaultLimit},
		{name: "negative", filter: &Filter{Limit: -3}, expected: DefaultLimit},
		{name: "within", filter: &Filter{Limit: 7}, expected: 7},
		{name: "max", filter: &Filter{Limit: 9000}, expected: MaxLimit},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.filter.EffectiveLimit())
		})
	}
}

func TestFilter_Parameters(t *testing.T) {
	assert.Nil(t, (*Filter)(nil).Parameters())
	params := (&Filter{Status: "PENDING", ApproverEmail: "a@b.c"}).Parameters()
	assert.Equal(t, []*dao.Parameter{
		{Name: dao.ParamStatus, Value: "PENDING"},
		{Name: dao.ParamApprover, Value: "a@b.c"},
	}, params)
}
