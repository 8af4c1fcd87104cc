package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/policy"
	"github.com/viant/accessflow/service/approval"
	auditmem "github.com/viant/accessflow/service/auditlog/memory"
	"github.com/viant/accessflow/service/dao/request"
	reqmem "github.com/viant/accessflow/service/dao/request/memory"
	svcidentity "github.com/viant/accessflow/service/identity"
	"github.com/viant/accessflow/service/provision"
)

const (
	viewerEmail  = "viewer@company.com"
	ownerEmail   = "data.owner@company.com"
	stewardEmail = "steward@company.com"
	adminEmail   = "admin@company.com"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRouter(t *testing.T, p *policy.Policy, limiter *RateLimiter) http.Handler {
	engine, err := approval.New(reqmem.New(), auditmem.New(0), p,
		approval.WithProvisioner(provision.BigQuery{}),
		approval.WithLogger(quietLogger))
	require.NoError(t, err)
	directory, err := svcidentity.NewDirectory(svcidentity.DefaultUsers())
	require.NoError(t, err)
	return NewRouter(NewHandler(engine, quietLogger), &RouterOptions{Resolver: directory, RateLimiter: limiter})
}

func call(t *testing.T, handler http.Handler, method, path, email string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if email != "" {
		req.Header.Set(svcidentity.HeaderUserEmail, email)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	var payload map[string]interface{}
	if recorder.Body.Len() > 0 {
		_ = json.Unmarshal(recorder.Body.Bytes(), &payload)
	}
	return recorder, payload
}

func createRequest(t *testing.T, handler http.Handler) string {
	recorder, payload := call(t, handler, http.MethodPost, "/access-requests", viewerEmail, map[string]string{
		"linked_resource": "//bigquery.googleapis.com/projects/acme/datasets/sales/tables/orders",
		"access_level":    "READER",
		"reason":          "quarterly report",
		"data_owner":      ownerEmail,
		"data_steward":    stewardEmail,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	item := payload["item"].(map[string]interface{})
	return item["id"].(string)
}

func TestHandler_CreateRequest(t *testing.T) {
	handler := newTestRouter(t, nil, nil)

	recorder, payload := call(t, handler, http.MethodPost, "/access-requests", viewerEmail, map[string]string{
		"linked_resource": "bq://demo.retail.sales",
		"access_level":    "writer",
		"reason":          "backfill",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, true, payload["ok"])
	item := payload["item"].(map[string]interface{})
	assert.Equal(t, viewerEmail, item["requester_email"])
	assert.Equal(t, "WRITER", item["access_level"])
	assert.Equal(t, "PENDING", item["status"])
	assert.Equal(t, "/access-requests/"+item["id"].(string), recorder.Header().Get("Location"))
	assert.NotEmpty(t, recorder.Header().Get(RequestIDHeader))
}

func TestHandler_Errors(t *testing.T) {
	handler := newTestRouter(t, nil, nil)
	id := createRequest(t, handler)

	var testCases = []struct {
		description string
		method      string
		path        string
		email       string
		body        interface{}
		expectCode  int
		expectError string
		fields      []interface{}
	}{
		{
			description: "missing fields",
			method:      http.MethodPost,
			path:        "/access-requests",
			email:       viewerEmail,
			body:        map[string]string{"access_level": "READER"},
			expectCode:  http.StatusUnprocessableEntity,
			expectError: ErrCodeValidationFailed,
			fields:      []interface{}{"linked_resource", "reason"},
		},
		{
			description: "missing caller",
			method:      http.MethodGet,
			path:        "/access-requests",
			expectCode:  http.StatusUnauthorized,
			expectError: ErrCodeUnauthorized,
		},
		{
			description: "unknown caller",
			method:      http.MethodGet,
			path:        "/access-requests",
			email:       "stranger@company.com",
			expectCode:  http.StatusForbidden,
			expectError: ErrCodeForbidden,
		},
		{
			description: "unknown request",
			method:      http.MethodGet,
			path:        "/access-requests/missing",
			email:       viewerEmail,
			expectCode:  http.StatusNotFound,
			expectError: ErrCodeNotFound,
		},
		{
			description: "viewer decision",
			method:      http.MethodPost,
			path:        "/access-requests/" + id + "/approve",
			email:       viewerEmail,
			expectCode:  http.StatusForbidden,
			expectError: ErrCodeForbidden,
		},
		{
			description: "unknown role",
			method:      http.MethodPost,
			path:        "/access-requests/" + id + "/approve",
			email:       adminEmail,
			body:        map[string]string{"role": "AUDITOR"},
			expectCode:  http.StatusUnprocessableEntity,
			expectError: ErrCodeValidationFailed,
			fields:      []interface{}{"role"},
		},
		{
			description: "missing decision",
			method:      http.MethodPost,
			path:        "/access-requests/" + id + "/decision",
			email:       ownerEmail,
			body:        map[string]string{"comment": "hmm"},
			expectCode:  http.StatusUnprocessableEntity,
			expectError: ErrCodeValidationFailed,
			fields:      []interface{}{"decision"},
		},
		{
			description: "invalid status filter",
			method:      http.MethodGet,
			path:        "/access-requests?status=DONE",
			email:       viewerEmail,
			expectCode:  http.StatusUnprocessableEntity,
			expectError: ErrCodeValidationFailed,
			fields:      []interface{}{"status"},
		},
		{
			description: "limit out of range",
			method:      http.MethodGet,
			path:        "/access-requests?limit=501",
			email:       viewerEmail,
			expectCode:  http.StatusUnprocessableEntity,
			expectError: ErrCodeValidationFailed,
			fields:      []interface{}{"limit"},
		},
		{
			description: "invalid audit action",
			method:      http.MethodGet,
			path:        "/audit?action=BOOT",
			email:       viewerEmail,
			expectCode:  http.StatusUnprocessableEntity,
			expectError: ErrCodeValidationFailed,
			fields:      []interface{}{"action"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			recorder, payload := call(t, handler, testCase.method, testCase.path, testCase.email, testCase.body)
			assert.Equal(t, testCase.expectCode, recorder.Code, recorder.Body.String())
			assert.Equal(t, testCase.expectError, payload["code"])
			assert.NotEmpty(t, payload["message"])
			assert.NotEmpty(t, payload["error"])
			if testCase.fields != nil {
				details := payload["details"].(map[string]interface{})
				assert.Equal(t, testCase.fields, details["fields"])
			}
		})
	}
}

func TestHandler_QuorumFlow(t *testing.T) {
	handler := newTestRouter(t, nil, nil)
	id := createRequest(t, handler)

	recorder, payload := call(t, handler, http.MethodPost, "/access-requests/"+id+"/approve", ownerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "PENDING", payload["item"].(map[string]interface{})["status"])
	assert.Equal(t, []interface{}{"STEWARD"}, payload["pending"])
	assert.Equal(t, "APPROVED", payload["quorum"].(map[string]interface{})["DATA_OWNER"])

	recorder, payload = call(t, handler, http.MethodPost, "/access-requests/"+id+"/decision", stewardEmail, map[string]string{"decision": "approve", "comment": "fine"})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	item := payload["item"].(map[string]interface{})
	assert.Equal(t, "APPROVED", item["status"])
	assert.Equal(t, stewardEmail, item["decided_by"])
	provisioning := payload["provisioning"].(map[string]interface{})
	assert.Equal(t, true, provisioning["ok"])
	assert.Equal(t, "acme.sales", provisioning["dataset"])

	recorder, payload = call(t, handler, http.MethodPost, "/access-requests/"+id+"/reject", ownerEmail, nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, ErrCodeConflict, payload["code"])

	recorder, payload = call(t, handler, http.MethodGet, "/access-requests/"+id, viewerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "APPROVED", payload["item"].(map[string]interface{})["status"])
	assert.Len(t, payload["approvals"], 2)

	recorder, payload = call(t, handler, http.MethodGet, "/access-requests?status=PENDING", viewerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(0), payload["total"])

	recorder, payload = call(t, handler, http.MethodGet, "/audit?entity_id="+id+"&limit=10", viewerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	items := payload["items"].([]interface{})
	require.Len(t, items, 5)
	var actions []string
	for _, item := range items {
		actions = append(actions, item.(map[string]interface{})["action"].(string))
	}
	assert.Equal(t, []string{"PROVISION_RESULT", "STATUS_CHANGE", "DECIDE", "DECIDE", "CREATE_REQUEST"}, actions)
}

func TestHandler_ListRequests(t *testing.T) {
	handler := newTestRouter(t, &policy.Policy{Mode: policy.ModeSingle, Redecision: policy.RedecisionOverwrite}, nil)
	first := createRequest(t, handler)
	second := createRequest(t, handler)

	recorder, payload := call(t, handler, http.MethodGet, "/access-requests?approver_email="+ownerEmail+"&limit=1", viewerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	items := payload["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, second, items[0].(map[string]interface{})["id"])
	assert.Empty(t, items[0].(map[string]interface{})["data_steward"])

	recorder, _ = call(t, handler, http.MethodPost, "/access-requests/"+first+"/reject", ownerEmail, map[string]string{"comment": "no"})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, payload = call(t, handler, http.MethodGet, "/access-requests?status=rejected", viewerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	items = payload["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, first, items[0].(map[string]interface{})["id"])
	assert.Equal(t, "no", items[0].(map[string]interface{})["decision_reason"])
}

func TestHandler_RateLimit(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	require.NoError(t, err)
	handler := newTestRouter(t, nil, limiter)
	id := createRequest(t, handler)

	recorder, _ := call(t, handler, http.MethodPost, "/access-requests/"+id+"/approve", ownerEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	recorder, payload := call(t, handler, http.MethodPost, "/access-requests/"+id+"/approve", ownerEmail, nil)
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, ErrCodeRateLimitExceeded, payload["code"])
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))

	recorder, _ = call(t, handler, http.MethodPost, "/access-requests/"+id+"/approve", stewardEmail, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	recorder, _ = call(t, handler, http.MethodGet, "/access-requests/"+id, ownerEmail, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	disabled, err := NewRateLimiter(RateLimitConfig{})
	require.NoError(t, err)
	assert.Nil(t, disabled)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	handler := newTestRouter(t, nil, nil)

	recorder, payload := call(t, handler, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, true, payload["ok"])

	createRequest(t, handler)
	recorder, _ = call(t, handler, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "accessflow_http_requests_total")

	recorder, payload = call(t, handler, http.MethodGet, "/me", adminEmail, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "quorum", payload["mode"])
	assert.Equal(t, "ADMIN", payload["user"].(map[string]interface{})["role"])

	recorder, payload = call(t, handler, http.MethodGet, "/nowhere", viewerEmail, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, ErrCodeNotFound, payload["code"])
}

// failingService fails every read with err.
type failingService struct {
	approval.Service
	err error
}

func (f *failingService) List(context.Context, *request.Filter) ([]*access.Request, error) {
	return nil, f.err
}

func TestHandler_InternalErrorsAreGeneric(t *testing.T) {
	var testCases = []struct {
		description string
		err         error
		expectCode  int
		expectError string
	}{
		{
			description: "storage failure",
			err:         fault.NewUnavailableError("list access requests", errors.New("dial tcp 10.0.0.7:5432: connection refused")),
			expectCode:  http.StatusServiceUnavailable,
			expectError: ErrCodeUnavailable,
		},
		{
			description: "unclassified failure",
			err:         errors.New("nil map write in 10.0.0.7"),
			expectCode:  http.StatusInternalServerError,
			expectError: ErrCodeInternalError,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			handler := NewRouter(NewHandler(&failingService{err: testCase.err}, quietLogger), &RouterOptions{
				Resolver: &svcidentity.Static{Identity: identity.Identity{Email: viewerEmail, Role: identity.RoleViewer}},
			})
			recorder, payload := call(t, handler, http.MethodGet, "/access-requests", "", nil)
			assert.Equal(t, testCase.expectCode, recorder.Code)
			assert.Equal(t, testCase.expectError, payload["code"])
			assert.NotContains(t, recorder.Body.String(), "10.0.0.7")
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusOf(fault.NewConflictError("busy")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}
