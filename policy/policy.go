package policy

import (
	"fmt"
	"strings"

	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

// Deployment modes.
const (
	ModeSingle = "single" // the request's data owner (or ADMIN) decides alone
	ModeQuorum = "quorum" // every required role must approve
)

// Re-decision policies for a role that already decided a pending request.
const (
	RedecisionOverwrite = "overwrite" // the newer decision becomes effective
	RedecisionReject    = "reject"    // the second decision fails with Conflict
)

// Policy is the runtime authorization and quorum policy.
//
//   - RequiredRoles must all approve in quorum mode.
//   - DecisionRoles are the roles allowed to decide; a rejection from any of
//     them rejects the request. RequiredRoles are always included.
//   - EnforceDesignated restricts DATA_OWNER/STEWARD decisions to the
//     emails designated on the request, when the request names them.
type Policy struct {
	Mode              string
	RequiredRoles     []identity.Role
	DecisionRoles     []identity.Role
	Redecision        string
	EnforceDesignated bool
}

// Config is the serialisable form of a Policy.
type Config struct {
	Mode              string   `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	RequiredRoles     []string `json:"requiredRoles,omitempty" yaml:"requiredRoles,omitempty" mapstructure:"required_roles"`
	DecisionRoles     []string `json:"decisionRoles,omitempty" yaml:"decisionRoles,omitempty" mapstructure:"decision_roles"`
	Redecision        string   `json:"redecision,omitempty" yaml:"redecision,omitempty" mapstructure:"redecision"`
	EnforceDesignated bool     `json:"enforceDesignated,omitempty" yaml:"enforceDesignated,omitempty" mapstructure:"enforce_designated"`
}

// Default returns the two-role quorum policy.
func Default() *Policy {
	return &Policy{
		Mode:          ModeQuorum,
		RequiredRoles: []identity.Role{identity.RoleDataOwner, identity.RoleSteward},
		Redecision:    RedecisionOverwrite,
	}
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:              p.Mode,
		RequiredRoles:     roleStrings(p.RequiredRoles),
		DecisionRoles:     roleStrings(p.DecisionRoles),
		Redecision:        p.Redecision,
		EnforceDesignated: p.EnforceDesignated,
	}
}

// FromConfig converts a stored Config back to a runtime Policy, filling
// defaults for unset fields.
func FromConfig(c *Config) *Policy {
	ret := Default()
	if c == nil {
		return ret
	}
	if c.Mode != "" {
		ret.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	}
	if len(c.RequiredRoles) > 0 {
		ret.RequiredRoles = parseRoles(c.RequiredRoles)
	}
	if len(c.DecisionRoles) > 0 {
		ret.DecisionRoles = parseRoles(c.DecisionRoles)
	}
	if c.Redecision != "" {
		ret.Redecision = strings.ToLower(strings.TrimSpace(c.Redecision))
	}
	ret.EnforceDesignated = c.EnforceDesignated
	return ret
}

// Validate returns an error describing invalid settings or nil.
func (p *Policy) Validate() error {
	switch p.Mode {
	case ModeSingle:
	case ModeQuorum:
		if len(p.RequiredRoles) == 0 {
			return fmt.Errorf("policy: quorum mode requires at least one required role")
		}
		for _, role := range p.RequiredRoles {
			if role == identity.RoleAdmin {
				return fmt.Errorf("policy: %s cannot be a required role", role)
			}
		}
	default:
		return fmt.Errorf("policy: unsupported mode %q", p.Mode)
	}
	switch p.Redecision {
	case RedecisionOverwrite, RedecisionReject:
	default:
		return fmt.Errorf("policy: unsupported redecision %q", p.Redecision)
	}
	return nil
}

// RequiresOwner reports whether requests must name a data owner at creation.
func (p *Policy) RequiresOwner() bool {
	return p.Mode == ModeSingle
}

// Roles returns the recognized decision roles in declaration order.
func (p *Policy) Roles() []identity.Role {
	if p.Mode == ModeSingle {
		return []identity.Role{identity.RoleDataOwner}
	}
	ret := append([]identity.Role(nil), p.RequiredRoles...)
	for _, role := range p.DecisionRoles {
		if !containsRole(ret, role) {
			ret = append(ret, role)
		}
	}
	return ret
}

// Required returns the roles that must approve.
func (p *Policy) Required() []identity.Role {
	if p.Mode == ModeSingle {
		return []identity.Role{identity.RoleDataOwner}
	}
	return p.RequiredRoles
}

// IsDecisionRole reports whether role may record a decision.
func (p *Policy) IsDecisionRole(role identity.Role) bool {
	return containsRole(p.Roles(), role)
}

// Authorize checks that actor may decide request and returns the role the
// decision is recorded under. requested is the role named by the caller,
// possibly empty.
func (p *Policy) Authorize(actor *identity.Identity, request *access.Request, requested string) (identity.Role, error) {
	if actor == nil || actor.Email == "" {
		return "", fault.NewUnauthenticatedError("missing caller identity")
	}
	if p.Mode == ModeSingle {
		if identity.NormalizeEmail(actor.Email) == request.DataOwner {
			return identity.RoleDataOwner, nil
		}
		if actor.IsAdmin() {
			return identity.RoleAdmin, nil
		}
		return "", fault.NewForbiddenError("%s is not the data owner of access request %s", actor.Email, request.ID)
	}

	var role identity.Role
	if requested == "" {
		if actor.IsAdmin() {
			return "", fault.NewValidationError("role is required when deciding as "+string(identity.RoleAdmin), "role")
		}
		role = actor.Role
		if !p.IsDecisionRole(role) {
			return "", fault.NewForbiddenError("role %s may not decide access requests", role)
		}
	} else {
		role = identity.ParseRole(requested)
		if !p.IsDecisionRole(role) {
			return "", fault.NewValidationError("unrecognized decision role "+requested, "role")
		}
		if actor.Role != role && !actor.IsAdmin() {
			return "", fault.NewForbiddenError("%s (%s) may not decide as %s", actor.Email, actor.Role, role)
		}
	}
	if p.EnforceDesignated && !actor.IsAdmin() {
		if designated := designatedEmail(request, role); designated != "" && designated != identity.NormalizeEmail(actor.Email) {
			return "", fault.NewForbiddenError("%s is not the designated %s of access request %s", actor.Email, role, request.ID)
		}
	}
	return role, nil
}

func designatedEmail(request *access.Request, role identity.Role) string {
	switch role {
	case identity.RoleDataOwner:
		return request.DataOwner
	case identity.RoleSteward:
		return request.DataSteward
	}
	return ""
}

func containsRole(roles []identity.Role, role identity.Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func parseRoles(values []string) []identity.Role {
	ret := make([]identity.Role, 0, len(values))
	for _, value := range values {
		if role := identity.ParseRole(value); role != "" && !containsRole(ret, role) {
			ret = append(ret, role)
		}
	}
	return ret
}

func roleStrings(roles []identity.Role) []string {
	if len(roles) == 0 {
		return nil
	}
	ret := make([]string, len(roles))
	for i, role := range roles {
		ret[i] = string(role)
	}
	return ret
}
