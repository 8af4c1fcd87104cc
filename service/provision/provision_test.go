package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/accessflow/model/access"
)

func TestBigQuery_Provision(t *testing.T) {
	testCases := []struct {
		name     string
		request  *access.Request
		expected *Result
	}{
		{
			name:     "reader",
			request:  &access.Request{LinkedResource: "//bigquery.googleapis.com/projects/acme/datasets/retail/tables/sales", AccessLevel: access.AccessReader, RequesterEmail: "viewer@company.com"},
			expected: &Result{OK: true, Granted: "DATASET_READER", Target: "acme.retail", Member: "user:viewer@company.com"},
		},
		{
			name:     "writer",
			request:  &access.Request{LinkedResource: "//bigquery.googleapis.com/projects/acme/datasets/retail/tables/sales", AccessLevel: access.AccessWriter, RequesterEmail: "viewer@company.com"},
			expected: &Result{OK: true, Granted: "DATASET_WRITER", Target: "acme.retail", Member: "user:viewer@company.com"},
		},
		{
			name:     "unsupported",
			request:  &access.Request{LinkedResource: "bigquery://demo.retail.sales_daily_gold", AccessLevel: access.AccessReader, RequesterEmail: "viewer@company.com"},
			expected: &Result{OK: false, Error: "unsupported linked_resource"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := BigQuery{}.Provision(context.Background(), tc.request)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestBigQuery_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BigQuery{}.Provision(ctx, &access.Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncAndNoop(t *testing.T) {
	boom := errors.New("iam down")
	_, err := Func(func(context.Context, *access.Request) (*Result, error) { return nil, boom }).Provision(context.Background(), &access.Request{})
	assert.ErrorIs(t, err, boom)

	result, err := Noop{}.Provision(context.Background(), &access.Request{})
	require.NoError(t, err)
	assert.True(t, result.OK)
}
