package idgen

import "github.com/google/uuid"

// NewFunc produces a new identifier. Override in tests.
var NewFunc = func() string {
	// v7 ids sort by creation time
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New returns a new globally unique identifier.
func New() string { return NewFunc() }
