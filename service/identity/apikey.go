package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

// ServiceAccount is an API key holder; Hash is the bcrypt hash of the key.
type ServiceAccount struct {
	Email string `json:"email" yaml:"email" mapstructure:"email"`
	Role  string `json:"role" yaml:"role" mapstructure:"role"`
	Hash  string `json:"hash" yaml:"hash" mapstructure:"hash"`
}

// APIKey resolves the X-Api-Key header against service account key hashes.
type APIKey struct {
	accounts []ServiceAccount
}

// NewAPIKey validates accounts and returns the resolver.
func NewAPIKey(accounts []ServiceAccount) (*APIKey, error) {
	ret := &APIKey{}
	for i, account := range accounts {
		if identity.NormalizeEmail(account.Email) == "" || identity.ParseRole(account.Role) == "" || account.Hash == "" {
			return nil, fmt.Errorf("invalid service account %d: email, role and hash are required", i)
		}
		ret.accounts = append(ret.accounts, account)
	}
	return ret, nil
}

// HashKey returns the bcrypt hash to configure for key.
func HashKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

func (a *APIKey) Resolve(_ context.Context, r *http.Request) (*identity.Identity, error) {
	key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if key == "" {
		return nil, ErrNoCredential
	}
	for _, account := range a.accounts {
		if bcrypt.CompareHashAndPassword([]byte(account.Hash), []byte(key)) == nil {
			return &identity.Identity{Email: identity.NormalizeEmail(account.Email), Role: identity.ParseRole(account.Role)}, nil
		}
	}
	return nil, fault.NewUnauthenticatedError("invalid api key")
}
