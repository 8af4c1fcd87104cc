package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/accessflow/internal/clock"
	"github.com/viant/accessflow/metrics"
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/policy"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/dao/request"
	"github.com/viant/accessflow/service/messaging"
	qmem "github.com/viant/accessflow/service/messaging/memory"
	"github.com/viant/accessflow/service/provision"
	"github.com/viant/accessflow/tracing"
)

// Engine implements Service over a request store and an audit log.
type Engine struct {
	store            request.Store
	audit            auditlog.Log
	policy           *policy.Policy
	provisioner      provision.Hook
	provisionTimeout time.Duration
	events           messaging.Queue[Event]
	publishTimeout   time.Duration
	logger           *slog.Logger
}

// New creates an approval engine. A nil policy means policy.Default().
func New(store request.Store, log auditlog.Log, p *policy.Policy, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("approval: request store was nil")
	}
	if log == nil {
		return nil, fmt.Errorf("approval: audit log was nil")
	}
	if p == nil {
		p = policy.Default()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ret := &Engine{
		store:            store,
		audit:            log,
		policy:           p,
		provisioner:      provision.Noop{},
		provisionTimeout: DefaultProvisionTimeout,
		publishTimeout:   DefaultPublishTimeout,
		logger:           slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.events == nil {
		ret.events = qmem.NewQueue[Event](qmem.DefaultConfig())
	}
	return ret, nil
}

func (e *Engine) Policy() *policy.Policy { return e.policy }

func (e *Engine) Queue() messaging.Queue[Event] { return e.events }

func (e *Engine) Create(ctx context.Context, actor *identity.Identity, input *CreateInput) (ret *access.Request, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.create", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if actor == nil || actor.Email == "" {
		return nil, fault.NewUnauthenticatedError("missing caller identity")
	}
	if input == nil {
		return nil, fault.NewMissingFieldsError("linked_resource", "access_level", "reason")
	}
	candidate := &access.Request{
		RequesterEmail: input.RequesterEmail,
		LinkedResource: input.LinkedResource,
		AccessLevel:    access.AccessLevel(input.AccessLevel),
		Reason:         input.Reason,
		DataOwner:      input.DataOwner,
		DataSteward:    input.DataSteward,
	}
	if strings.TrimSpace(candidate.RequesterEmail) == "" {
		candidate.RequesterEmail = actor.Email
	}
	if e.policy.Mode == policy.ModeSingle {
		candidate.DataSteward = ""
	}
	candidate.Normalize()
	if err = candidate.Validate(e.policy.RequiresOwner()); err != nil {
		return nil, err
	}

	err = e.store.Atomic(ctx, "", func(ctx context.Context) error {
		created, err := e.store.Create(ctx, candidate)
		if err != nil {
			return err
		}
		event, err := audit.NewEvent(actor, created.ID, audit.CreateRequestMetadata{
			LinkedResource: created.LinkedResource,
			AccessLevel:    created.AccessLevel,
			RequesterEmail: created.RequesterEmail,
			DataOwner:      created.DataOwner,
			DataSteward:    created.DataSteward,
		})
		if err != nil {
			return err
		}
		if err = e.audit.Append(ctx, event); err != nil {
			return err
		}
		ret = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.Set(tracing.AttrRequestID, ret.ID).Set(tracing.AttrActor, actor.Email)
	metrics.RecordCreated()
	e.logger.Info("access request created", "id", ret.ID, "requester", ret.RequesterEmail, "resource", ret.LinkedResource, "level", ret.AccessLevel)
	e.publish(ctx, TopicRequestCreated, actor, ret.ID, ret)
	return ret, nil
}

func (e *Engine) Decide(ctx context.Context, actor *identity.Identity, input *DecideInput) (ret *Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.decide", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if input == nil || strings.TrimSpace(input.RequestID) == "" {
		return nil, fault.NewMissingFieldsError("id")
	}
	if actor == nil || actor.Email == "" {
		return nil, fault.NewUnauthenticatedError("missing caller identity")
	}
	decision, err := access.ParseDecision(string(input.Decision))
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.RequestID)
	span.Set(tracing.AttrRequestID, id).Set(tracing.AttrDecision, string(decision))

	var role identity.Role
	var resolved bool
	err = e.store.Atomic(ctx, id, func(ctx context.Context) error {
		resolved = false
		current, err := e.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != access.StatusPending {
			return fault.NewConflictError("access request %s is already %s", id, current.Status)
		}
		if role, err = e.policy.Authorize(actor, current, input.Role); err != nil {
			return err
		}
		approvals, err := e.store.Approvals(ctx, id)
		if err != nil {
			return err
		}
		var supersedes string
		if prior, ok := access.Effective(approvals)[role]; ok {
			if e.policy.Redecision == policy.RedecisionReject {
				return fault.NewConflictError("%s already decided access request %s", role, id)
			}
			supersedes = prior.ID
		}
		approval := &access.Approval{
			RequestID:     id,
			Role:          role,
			ApproverEmail: actor.Email,
			Decision:      decision,
			Comment:       strings.TrimSpace(input.Comment),
		}
		if err = e.store.RecordApproval(ctx, approval); err != nil {
			return err
		}
		approvals = append(approvals, approval)
		decided, err := audit.NewEvent(actor, id, audit.DecideMetadata{
			ApprovalID: approval.ID,
			Role:       role,
			Decision:   decision,
			Comment:    approval.Comment,
			Supersedes: supersedes,
		})
		if err != nil {
			return err
		}
		staged := []*audit.Event{decided}

		quorum := Evaluate(e.policy, approvals)
		if quorum.Status != access.StatusPending {
			resolution := &access.Resolution{DecidedBy: identity.NormalizeEmail(actor.Email), Reason: approval.Comment, At: clock.Now()}
			if current, err = e.store.Transition(ctx, id, quorum.Status, resolution); err != nil {
				return err
			}
			changed, err := audit.NewEvent(actor, id, audit.StatusChangeMetadata{
				From:   access.StatusPending,
				To:     quorum.Status,
				Reason: approval.Comment,
				Quorum: quorum.Decisions,
			})
			if err != nil {
				return err
			}
			staged = append(staged, changed)
			resolved = true
		}
		if err = e.audit.Append(ctx, staged...); err != nil {
			return err
		}
		ret = &Outcome{Request: current, Approvals: approvals, Quorum: quorum.Decisions, Pending: quorum.Pending}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDecision(string(role), string(decision))
	span.Set(tracing.AttrStatus, string(ret.Request.Status))
	e.logger.Info("decision recorded", "id", id, "actor", actor.Email, "role", role, "decision", decision, "status", ret.Request.Status)
	if resolved {
		metrics.RecordTransition(string(ret.Request.Status))
		if ret.Request.Status == access.StatusApproved {
			ret.Provisioning = e.provision(ctx, actor, ret.Request)
		}
	}
	e.publish(ctx, TopicDecisionCreated, actor, id, ret)
	if resolved {
		e.publish(ctx, TopicRequestResolved, actor, id, ret)
	}
	return ret, nil
}

// provision runs the hook detached from the caller's cancellation and
// records its result; failures never surface as errors.
func (e *Engine) provision(ctx context.Context, actor *identity.Identity, r *access.Request) (result *provision.Result) {
	detached := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithTimeout(detached, e.provisionTimeout)
	defer cancel()
	runCtx, span := tracing.StartSpan(runCtx, "approval.provision", tracing.KindClient)
	span.Set(tracing.AttrRequestID, r.ID)
	var err error
	func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("provisioning panic: %v", recovered)
			}
		}()
		result, err = e.provisioner.Provision(runCtx, r)
	}()
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	tracing.EndSpan(span, err)
	switch {
	case err != nil:
		result = &provision.Result{Error: err.Error()}
	case result == nil:
		result = &provision.Result{OK: true}
	}

	outcome := "ok"
	if !result.OK {
		outcome = "failed"
		e.logger.Warn("provisioning failed", "id", r.ID, "resource", r.LinkedResource, "error", result.Error)
	}
	metrics.RecordProvisioning(outcome)
	event, err := audit.NewEvent(actor, r.ID, audit.ProvisionResultMetadata{
		OK:      result.OK,
		Granted: result.Granted,
		Target:  result.Target,
		Member:  result.Member,
		Error:   result.Error,
	})
	if err == nil {
		err = e.audit.Append(detached, event)
	}
	if err != nil {
		e.logger.Error("failed to record provisioning result", "id", r.ID, "error", err)
	}
	return result
}

func (e *Engine) publish(ctx context.Context, topic string, actor *identity.Identity, id string, data interface{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.publishTimeout)
	defer cancel()
	event := &Event{Topic: topic, RequestID: id, Actor: actor, Data: data}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish event", "topic", topic, "id", id, "error", err)
	}
}

func (e *Engine) Get(ctx context.Context, id string) (*Outcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fault.NewMissingFieldsError("id")
	}
	current, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	approvals, err := e.store.Approvals(ctx, id)
	if err != nil {
		return nil, err
	}
	quorum := Evaluate(e.policy, approvals)
	ret := &Outcome{Request: current, Approvals: approvals, Quorum: quorum.Decisions, Pending: quorum.Pending}
	if current.Status != access.StatusPending {
		ret.Pending = []identity.Role{}
	}
	if ret.Approvals == nil {
		ret.Approvals = []*access.Approval{}
	}
	return ret, nil
}

func (e *Engine) List(ctx context.Context, filter *request.Filter) ([]*access.Request, error) {
	return e.store.List(ctx, filter)
}

func (e *Engine) Audit(ctx context.Context, filter *auditlog.Filter) (*auditlog.Page, error) {
	return e.audit.List(ctx, filter)
}

var _ Service = (*Engine)(nil)
