// Package dao holds the storage primitives shared by the request stores:
// list parameters, sentinel errors and the keyed entity contract.
package dao

import "context"

// Service is a keyed entity store. Load and Delete report ErrNotFound for
// a missing key; List filters with parameters when the store supports them.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error
	Load(ctx context.Context, id K) (*T, error)
	Delete(ctx context.Context, id K) error
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
