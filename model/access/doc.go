// Package access holds the access-request data model: the request itself,
// its status state machine and the approval decisions recorded against it.
package access
