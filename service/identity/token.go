package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/viant/scy"

	"github.com/viant/accessflow/internal/clock"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

const (
	defaultTokenTTL  = time.Hour
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
	bearerPrefix     = "bearer "
)

// Claims are the bearer token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

type verified struct {
	identity  identity.Identity
	expiresAt time.Time
}

// Token resolves HS256 bearer tokens.
type Token struct {
	key       []byte
	directory *Directory
	cache     *expirable.LRU[string, verified]
}

// TokenOption configures Token.
type TokenOption func(*Token)

// WithTokenDirectory requires token subjects to be registered in directory;
// the directory role wins over the role claim.
func WithTokenDirectory(directory *Directory) TokenOption {
	return func(t *Token) { t.directory = directory }
}

// WithTokenCache sets the verified token cache size and ttl.
func WithTokenCache(size int, ttl time.Duration) TokenOption {
	return func(t *Token) { t.cache = expirable.NewLRU[string, verified](size, nil, ttl) }
}

// NewToken creates a bearer token resolver signed with key.
func NewToken(key []byte, opts ...TokenOption) (*Token, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("token signing key is required")
	}
	ret := &Token{key: key}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.cache == nil {
		ret.cache = expirable.NewLRU[string, verified](defaultCacheSize, nil, defaultCacheTTL)
	}
	return ret, nil
}

// LoadKey reads a signing key through scy; secretKey decrypts an encrypted
// resource (for example blowfish://default) and may be empty.
func LoadKey(ctx context.Context, URL, secretKey string) ([]byte, error) {
	resource := scy.NewResource(nil, URL, secretKey)
	secret, err := scy.New().Load(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key from %s: %w", URL, err)
	}
	key := strings.TrimSpace(secret.String())
	if key == "" {
		return nil, fmt.Errorf("signing key %s is empty", URL)
	}
	return []byte(key), nil
}

// Issue signs a token for id valid for ttl.
func (t *Token) Issue(id *identity.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		Role:  string(id.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

func (t *Token) Resolve(_ context.Context, r *http.Request) (*identity.Identity, error) {
	header := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if header == "" || len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, ErrNoCredential
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return nil, fault.NewUnauthenticatedError("empty bearer token")
	}
	if cached, ok := t.cache.Get(raw); ok {
		if cached.expiresAt.IsZero() || clock.Now().Before(cached.expiresAt) {
			ret := cached.identity
			return &ret, nil
		}
		t.cache.Remove(raw)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithTimeFunc(clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fault.NewUnauthenticatedError("bearer token expired")
		}
		return nil, fault.NewUnauthenticatedError("invalid bearer token")
	}
	if !token.Valid {
		return nil, fault.NewUnauthenticatedError("invalid bearer token")
	}
	id, err := t.identity(claims)
	if err != nil {
		return nil, err
	}
	entry := verified{identity: *id}
	if claims.ExpiresAt != nil {
		entry.expiresAt = claims.ExpiresAt.Time
	}
	t.cache.Add(raw, entry)
	return id, nil
}

func (t *Token) identity(claims *Claims) (*identity.Identity, error) {
	email := identity.NormalizeEmail(claims.Email)
	if email == "" {
		email = identity.NormalizeEmail(claims.Subject)
	}
	if email == "" {
		return nil, fault.NewUnauthenticatedError("bearer token has no email claim")
	}
	if t.directory != nil {
		id, ok := t.directory.Lookup(email)
		if !ok {
			return nil, fault.NewForbiddenError("user %s is not allowed", email)
		}
		return id, nil
	}
	role := identity.ParseRole(claims.Role)
	if role == "" {
		return nil, fault.NewForbiddenError("user %s has no role", email)
	}
	return &identity.Identity{Email: email, Role: role}, nil
}
