package dao

import "github.com/viant/accessflow/model/fault"

// Common, reusable DAO errors. They carry a fault kind so callers can test
// them either with errors.Is against these sentinels or with fault.KindOf.

var (
	// ErrNotFound is returned when the requested entity does not exist in the
	// underlying storage.
	ErrNotFound = &fault.Error{Kind: fault.NotFound, Message: "dao: not found"}

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = &fault.Error{Kind: fault.Validation, Message: "dao: invalid id", Fields: []string{"id"}}

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = &fault.Error{Kind: fault.Validation, Message: "dao: nil entity"}
)
