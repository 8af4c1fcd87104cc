// Package identity resolves inbound HTTP credentials to an actor identity.
// Resolvers fail closed: a missing or malformed credential is reported as
// Unauthenticated and an unrecognized identity as Forbidden.
package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

// Header names read by the built-in resolvers.
const (
	HeaderUserEmail     = "X-User-Email"
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-Api-Key"
)

// ErrNoCredential is returned when a request carries no credential that a
// resolver understands. Chain moves on to the next resolver on it.
var ErrNoCredential = &fault.Error{Kind: fault.Unauthenticated, Message: "missing credentials"}

// Resolver maps a request to the caller's identity.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, r *http.Request) (*identity.Identity, error)

func (f Func) Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	return f(ctx, r)
}

// Static resolves every request to the same identity.
type Static struct {
	Identity identity.Identity
}

func (s *Static) Resolve(context.Context, *http.Request) (*identity.Identity, error) {
	ret := s.Identity
	return &ret, nil
}

// Chain tries resolvers in order; the first one that finds a credential
// decides the outcome.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	for _, resolver := range c {
		id, err := resolver.Resolve(ctx, r)
		if errors.Is(err, ErrNoCredential) {
			continue
		}
		return id, err
	}
	return nil, ErrNoCredential
}

type contextKey struct{}

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*identity.Identity)
	return id, ok && id != nil
}
