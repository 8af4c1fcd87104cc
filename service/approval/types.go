package approval

import (
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/provision"
)

// Event is published on the service queue after a change commits.
type Event struct {
	Topic     string             `json:"topic"`
	RequestID string             `json:"requestId"`
	Actor     *identity.Identity `json:"actor,omitempty"`
	Data      interface{}        `json:"data"` // *access.Request | *Outcome
	Headers   map[string]string  `json:"headers,omitempty"`
}

// Standard event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicDecisionCreated = "decision.created"
	TopicRequestResolved = "request.resolved"
)

// CreateInput carries the fields of a new access request.
type CreateInput struct {
	LinkedResource string `json:"linked_resource"`
	RequesterEmail string `json:"requester_email,omitempty"`
	AccessLevel    string `json:"access_level"`
	Reason         string `json:"reason"`
	DataOwner      string `json:"data_owner,omitempty"`
	DataSteward    string `json:"data_steward,omitempty"`
}

// DecideInput carries one decision. Role is optional; see policy.Authorize.
type DecideInput struct {
	RequestID string          `json:"-"`
	Decision  access.Decision `json:"decision"`
	Role      string          `json:"role,omitempty"`
	Comment   string          `json:"comment,omitempty"`
}

// Outcome is a request together with its approval state.
type Outcome struct {
	Request      *access.Request                   `json:"item"`
	Approvals    []*access.Approval                `json:"approvals"`
	Quorum       map[identity.Role]access.Decision `json:"quorum"`
	Pending      []identity.Role                   `json:"pending"`
	Provisioning *provision.Result                 `json:"provisioning,omitempty"`
}
