// Package audit defines the append-only audit record. Each action carries
// its own typed, versioned metadata payload so the log stays machine
// readable across releases.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/identity"
)

// Action tags a state-changing operation.
type Action string

const (
	ActionCreateRequest   Action = "CREATE_REQUEST"
	ActionDecide          Action = "DECIDE"
	ActionStatusChange    Action = "STATUS_CHANGE"
	ActionProvisionResult Action = "PROVISION_RESULT"
)

// SchemaVersion is the metadata schema version written by this release.
const SchemaVersion = 1

// ParseAction normalizes s; an empty string yields an empty action.
func ParseAction(s string) (Action, bool) {
	action := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch action {
	case "", ActionCreateRequest, ActionDecide, ActionStatusChange, ActionProvisionResult:
		return action, true
	}
	return "", false
}

// Event is an immutable audit record.
type Event struct {
	ID            string          `json:"id" db:"id"`
	Sequence      int64           `json:"sequence" db:"sequence"`
	Timestamp     time.Time       `json:"timestamp" db:"occurred_at"`
	ActorEmail    string          `json:"actor_email" db:"actor_email"`
	ActorRole     identity.Role   `json:"actor_role" db:"actor_role"`
	Action        Action          `json:"action" db:"action"`
	EntityType    string          `json:"entity_type" db:"entity_type"`
	EntityID      string          `json:"entity_id" db:"entity_id"`
	SchemaVersion int             `json:"schema_version" db:"schema_version"`
	Metadata      json.RawMessage `json:"metadata" db:"metadata"`
}

// Metadata is implemented by every action payload.
type Metadata interface {
	Action() Action
}

// CreateRequestMetadata is the payload of CREATE_REQUEST.
type CreateRequestMetadata struct {
	LinkedResource string             `json:"linked_resource"`
	AccessLevel    access.AccessLevel `json:"access_level"`
	RequesterEmail string             `json:"requester_email"`
	DataOwner      string             `json:"data_owner,omitempty"`
	DataSteward    string             `json:"data_steward,omitempty"`
}

func (CreateRequestMetadata) Action() Action { return ActionCreateRequest }

// DecideMetadata is the payload of DECIDE.
type DecideMetadata struct {
	ApprovalID string          `json:"approval_id"`
	Role       identity.Role   `json:"role"`
	Decision   access.Decision `json:"decision"`
	Comment    string          `json:"comment,omitempty"`
	Supersedes string          `json:"supersedes,omitempty"`
}

func (DecideMetadata) Action() Action { return ActionDecide }

// StatusChangeMetadata is the payload of STATUS_CHANGE.
type StatusChangeMetadata struct {
	From   access.Status                     `json:"from"`
	To     access.Status                     `json:"to"`
	Reason string                            `json:"reason,omitempty"`
	Quorum map[identity.Role]access.Decision `json:"quorum,omitempty"`
}

func (StatusChangeMetadata) Action() Action { return ActionStatusChange }

// ProvisionResultMetadata is the payload of PROVISION_RESULT.
type ProvisionResultMetadata struct {
	OK      bool   `json:"ok"`
	Granted string `json:"granted,omitempty"`
	Target  string `json:"target,omitempty"`
	Member  string `json:"member,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (ProvisionResultMetadata) Action() Action { return ActionProvisionResult }

// NewEvent builds an event about an access request; the log assigns ID,
// Sequence and Timestamp on append when unset.
func NewEvent(actor *identity.Identity, requestID string, metadata Metadata) (*Event, error) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s metadata: %w", metadata.Action(), err)
	}
	ret := &Event{
		Action:        metadata.Action(),
		EntityType:    access.EntityType,
		EntityID:      requestID,
		SchemaVersion: SchemaVersion,
		Metadata:      payload,
	}
	if actor != nil {
		ret.ActorEmail = actor.Email
		ret.ActorRole = actor.Role
	}
	return ret, nil
}

// Decode returns the typed payload matching the event's action.
func (e *Event) Decode() (Metadata, error) {
	var target Metadata
	switch e.Action {
	case ActionCreateRequest:
		target = &CreateRequestMetadata{}
	case ActionDecide:
		target = &DecideMetadata{}
	case ActionStatusChange:
		target = &StatusChangeMetadata{}
	case ActionProvisionResult:
		target = &ProvisionResultMetadata{}
	default:
		return nil, fmt.Errorf("unsupported audit action %q", e.Action)
	}
	if e.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported %s schema version %d", e.Action, e.SchemaVersion)
	}
	if len(e.Metadata) > 0 {
		if err := json.Unmarshal(e.Metadata, target); err != nil {
			return nil, fmt.Errorf("failed to decode %s metadata: %w", e.Action, err)
		}
	}
	return target, nil
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	ret := *e
	ret.Metadata = append(json.RawMessage(nil), e.Metadata...)
	return &ret
}
