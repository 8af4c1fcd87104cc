package approval

import (
	"context"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/policy"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/dao/request"
	"github.com/viant/accessflow/service/messaging"
)

// Service defines the approval service interface.
type Service interface {
	// Create validates and persists a new PENDING request.
	Create(ctx context.Context, actor *identity.Identity, input *CreateInput) (*access.Request, error)

	// Decide records actor's decision and resolves the request when the
	// decision completes or breaks the quorum.
	Decide(ctx context.Context, actor *identity.Identity, input *DecideInput) (*Outcome, error)

	// Get returns a request with its approvals and quorum state.
	Get(ctx context.Context, id string) (*Outcome, error)

	// List returns requests newest first.
	List(ctx context.Context, filter *request.Filter) ([]*access.Request, error)

	// Audit returns audit events newest first.
	Audit(ctx context.Context, filter *auditlog.Filter) (*auditlog.Page, error)

	// Policy returns the active policy.
	Policy() *policy.Policy

	// Queue returns the fan-out queue of request and decision events.
	Queue() messaging.Queue[Event]
}
