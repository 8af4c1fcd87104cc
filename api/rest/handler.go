package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/approval"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/dao/request"
	svcidentity "github.com/viant/accessflow/service/identity"
)

// maxBodyBytes bounds a JSON request body.
const maxBodyBytes = 1 << 20

// Handler serves the access request API.
type Handler struct {
	service approval.Service
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service approval.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type itemResponse struct {
	OK   bool            `json:"ok"`
	Item *access.Request `json:"item"`
}

type listResponse struct {
	OK    bool              `json:"ok"`
	Items []*access.Request `json:"items"`
	Total int               `json:"total"`
}

type outcomeResponse struct {
	OK bool `json:"ok"`
	*approval.Outcome
}

type decisionBody struct {
	Decision string `json:"decision,omitempty"`
	Role     string `json:"role,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// CreateRequest handles POST /access-requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var input approval.CreateInput
	if err := decodeBody(r, &input, true); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	caller, _ := svcidentity.FromContext(r.Context())
	created, err := h.service.Create(r.Context(), caller, &input)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/access-requests/"+created.ID)
	respondJSON(w, http.StatusCreated, itemResponse{OK: true, Item: created})
}

// ListRequests handles GET /access-requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status, err := access.ParseStatus(query.Get("status"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	limit, err := parseLimit(query.Get("limit"), request.MaxLimit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	filter := &request.Filter{Status: status, ApproverEmail: strings.TrimSpace(query.Get("approver_email")), Limit: limit}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{OK: true, Items: items, Total: len(items)})
}

// GetRequest handles GET /access-requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, outcomeResponse{OK: true, Outcome: outcome})
}

// Approve handles POST /access-requests/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, access.DecisionApproved)
}

// Reject handles POST /access-requests/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, access.DecisionRejected)
}

// Decide handles POST /access-requests/{id}/decision
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "")
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision access.Decision) {
	var body decisionBody
	if err := decodeBody(r, &body, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if decision == "" {
		if strings.TrimSpace(body.Decision) == "" {
			respondError(w, r, h.logger, fault.NewMissingFieldsError("decision"))
			return
		}
		decision = access.Decision(body.Decision)
	}
	caller, _ := svcidentity.FromContext(r.Context())
	outcome, err := h.service.Decide(r.Context(), caller, &approval.DecideInput{
		RequestID: mux.Vars(r)["id"],
		Decision:  decision,
		Role:      body.Role,
		Comment:   body.Comment,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, outcomeResponse{OK: true, Outcome: outcome})
}

// ListAudit handles GET /audit
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	action, ok := audit.ParseAction(query.Get("action"))
	if !ok {
		respondError(w, r, h.logger, fault.NewValidationError("unsupported action "+query.Get("action"), "action"))
		return
	}
	limit, err := parseLimit(query.Get("limit"), auditlog.MaxLimit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	page, err := h.service.Audit(r.Context(), &auditlog.Filter{Action: action, EntityID: strings.TrimSpace(query.Get("entity_id")), Limit: limit})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if page.Items == nil {
		page.Items = []*audit.Event{}
	}
	respondJSON(w, http.StatusOK, page)
}

// Me handles GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, _ := svcidentity.FromContext(r.Context())
	respondJSON(w, http.StatusOK, struct {
		OK    bool               `json:"ok"`
		User  *identity.Identity `json:"user"`
		Mode  string             `json:"mode"`
		Roles []identity.Role    `json:"roles"`
	}{OK: true, User: caller, Mode: h.service.Policy().Mode, Roles: h.service.Policy().Roles()})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func parseLimit(value string, max int) (int, error) {
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || limit < 1 || limit > max {
		return 0, fault.NewValidationError("limit must be between 1 and "+strconv.Itoa(max), "limit")
	}
	return limit, nil
}

// decodeBody reads a JSON body into target; an empty body is accepted
// unless required.
func decodeBody(r *http.Request, target interface{}, required bool) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) && !required {
			return nil
		}
		return fault.NewValidationError("invalid request body: "+err.Error(), "body")
	}
	return nil
}
