// Package approval implements the access request lifecycle: who may decide a
// request, how recorded decisions resolve it, and the audit trail every
// state change leaves behind.
//
// A request starts PENDING and moves once, to APPROVED or REJECTED. In
// single mode the request's data owner (or an administrator) decides alone.
// In quorum mode every required role must approve and a rejection from any
// decision role rejects the request. Each decision and each transition is
// committed together with its audit events; provisioning runs after the
// transition commits and never reverts it.
package approval
