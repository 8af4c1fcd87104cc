// Package idgen generates identifiers for access requests, approvals and
// audit events. Callers treat the values as opaque strings; tests replace
// NewFunc to get predictable ids.
package idgen
