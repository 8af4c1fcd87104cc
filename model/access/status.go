package access

import (
	"strings"

	"github.com/viant/accessflow/model/fault"
)

// Status is the lifecycle state of an access request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.IsTerminal()
}

// ParseStatus normalizes s; an empty string yields an empty status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case "", StatusPending, StatusApproved, StatusRejected:
		return status, nil
	}
	return "", fault.NewValidationError("unsupported status "+s, "status")
}

// Decision is an approver's verdict.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ParseDecision accepts APPROVED/REJECTED and the approve/reject verbs.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED", "APPROVE":
		return DecisionApproved, nil
	case "REJECTED", "REJECT":
		return DecisionRejected, nil
	}
	return "", fault.NewValidationError("decision must be APPROVED or REJECTED", "decision")
}

// Status returns the terminal status a decision resolves to.
func (d Decision) Status() Status {
	if d == DecisionApproved {
		return StatusApproved
	}
	return StatusRejected
}

// AccessLevel is the level of access being requested.
type AccessLevel string

const (
	AccessReader AccessLevel = "READER"
	AccessWriter AccessLevel = "WRITER"
	AccessOwner  AccessLevel = "OWNER"
)

// ParseAccessLevel normalizes s and rejects unknown levels.
func ParseAccessLevel(s string) (AccessLevel, error) {
	level := AccessLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case AccessReader, AccessWriter, AccessOwner:
		return level, nil
	}
	return "", fault.NewValidationError("unsupported access_level "+s, "access_level")
}
