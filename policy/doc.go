// Package policy decides who may approve an access request. A Policy names
// the deployment mode (a single designated owner, or a quorum of roles),
// the roles whose decisions count, and what happens when a role decides
// twice.
package policy
