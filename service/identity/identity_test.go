package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/viant/accessflow/internal/clock"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
)

func newRequest(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/access-requests", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestDirectory_Resolve(t *testing.T) {
	directory, err := NewDirectory(DefaultUsers())
	require.NoError(t, err)

	testCases := []struct {
		name     string
		email    string
		expected *identity.Identity
		kind     fault.Kind
	}{
		{name: "missing header", kind: fault.Unauthenticated},
		{name: "unknown user", email: "stranger@company.com", kind: fault.Forbidden},
		{name: "steward", email: "steward@company.com", expected: &identity.Identity{Email: "steward@company.com", Role: identity.RoleSteward}},
		{name: "case insensitive", email: " Admin@Company.com ", expected: &identity.Identity{Email: "admin@company.com", Role: identity.RoleAdmin}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.email != "" {
				headers[HeaderUserEmail] = tc.email
			}
			actual, err := directory.Resolve(context.Background(), newRequest(headers))
			if tc.expected == nil {
				require.Error(t, err)
				assert.Equal(t, tc.kind, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(location, []byte(`users:
  - email: data.steward@company.com
    role: DATA_STEWARD
  - email: owner@company.com
    role: data_owner
`), 0o644))

	directory, err := LoadDirectory(context.Background(), nil, location)
	require.NoError(t, err)
	id, ok := directory.Lookup("data.steward@company.com")
	require.True(t, ok)
	assert.Equal(t, identity.RoleSteward, id.Role)
	assert.Equal(t, []User{
		{Email: "data.steward@company.com", Role: "STEWARD"},
		{Email: "owner@company.com", Role: "DATA_OWNER"},
	}, directory.Users())

	_, err = ParseDirectory([]byte("users:\n  - email: x@company.com\n"))
	assert.Error(t, err)
}

func TestToken_Resolve(t *testing.T) {
	token, err := NewToken([]byte("top-secret"))
	require.NoError(t, err)
	signed, err := token.Issue(&identity.Identity{Email: "data.owner@company.com", Role: identity.RoleDataOwner}, time.Minute)
	require.NoError(t, err)

	other, err := NewToken([]byte("another-secret"))
	require.NoError(t, err)
	forged, err := other.Issue(&identity.Identity{Email: "admin@company.com", Role: identity.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	noRole, err := token.Issue(&identity.Identity{Email: "viewer@company.com"}, time.Minute)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		header   string
		expected *identity.Identity
		kind     fault.Kind
		skipped  bool
	}{
		{name: "no header", skipped: true},
		{name: "basic auth", header: "Basic abc", skipped: true},
		{name: "valid", header: "Bearer " + signed, expected: &identity.Identity{Email: "data.owner@company.com", Role: identity.RoleDataOwner}},
		{name: "cached", header: "bearer " + signed, expected: &identity.Identity{Email: "data.owner@company.com", Role: identity.RoleDataOwner}},
		{name: "garbage", header: "Bearer not-a-token", kind: fault.Unauthenticated},
		{name: "wrong key", header: "Bearer " + forged, kind: fault.Unauthenticated},
		{name: "no role", header: "Bearer " + noRole, kind: fault.Forbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.header != "" {
				headers[HeaderAuthorization] = tc.header
			}
			actual, err := token.Resolve(context.Background(), newRequest(headers))
			if tc.skipped {
				assert.ErrorIs(t, err, ErrNoCredential)
				return
			}
			if tc.expected == nil {
				require.Error(t, err)
				assert.Equal(t, tc.kind, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestToken_Expired(t *testing.T) {
	defer func(prev func() time.Time) { clock.NowFunc = prev }(clock.NowFunc)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return base }

	token, err := NewToken([]byte("top-secret"))
	require.NoError(t, err)
	signed, err := token.Issue(&identity.Identity{Email: "steward@company.com", Role: identity.RoleSteward}, time.Minute)
	require.NoError(t, err)
	r := newRequest(map[string]string{HeaderAuthorization: "Bearer " + signed})

	_, err = token.Resolve(context.Background(), r)
	require.NoError(t, err)

	clock.NowFunc = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = token.Resolve(context.Background(), r)
	assert.ErrorIs(t, err, fault.ErrUnauthenticated)
}

func TestToken_Directory(t *testing.T) {
	directory, err := NewDirectory(DefaultUsers())
	require.NoError(t, err)
	token, err := NewToken([]byte("top-secret"), WithTokenDirectory(directory))
	require.NoError(t, err)

	signed, err := token.Issue(&identity.Identity{Email: "steward@company.com", Role: identity.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	id, err := token.Resolve(context.Background(), newRequest(map[string]string{HeaderAuthorization: "Bearer " + signed}))
	require.NoError(t, err)
	assert.Equal(t, identity.RoleSteward, id.Role)

	stranger, err := token.Issue(&identity.Identity{Email: "stranger@company.com", Role: identity.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	_, err = token.Resolve(context.Background(), newRequest(map[string]string{HeaderAuthorization: "Bearer " + stranger}))
	assert.ErrorIs(t, err, fault.ErrForbidden)
}

func TestLoadKey(t *testing.T) {
	location := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, os.WriteFile(location, []byte("signing-secret\n"), 0o600))
	key, err := LoadKey(context.Background(), location, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("signing-secret"), key)

	_, err = NewToken(nil)
	assert.Error(t, err)
}

func TestAPIKey_Resolve(t *testing.T) {
	hash, err := HashKey("svc-key", bcrypt.MinCost)
	require.NoError(t, err)
	resolver, err := NewAPIKey([]ServiceAccount{{Email: "provisioner@company.com", Role: "ADMIN", Hash: hash}})
	require.NoError(t, err)

	id, err := resolver.Resolve(context.Background(), newRequest(map[string]string{HeaderAPIKey: "svc-key"}))
	require.NoError(t, err)
	assert.Equal(t, &identity.Identity{Email: "provisioner@company.com", Role: identity.RoleAdmin}, id)

	_, err = resolver.Resolve(context.Background(), newRequest(map[string]string{HeaderAPIKey: "wrong"}))
	assert.ErrorIs(t, err, fault.ErrUnauthenticated)

	_, err = resolver.Resolve(context.Background(), newRequest(nil))
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = NewAPIKey([]ServiceAccount{{Email: "x@company.com"}})
	assert.Error(t, err)
}

func TestChain_Resolve(t *testing.T) {
	directory, err := NewDirectory(DefaultUsers())
	require.NoError(t, err)
	token, err := NewToken([]byte("top-secret"))
	require.NoError(t, err)
	chain := Chain{token, directory}

	id, err := chain.Resolve(context.Background(), newRequest(map[string]string{HeaderUserEmail: "viewer@company.com"}))
	require.NoError(t, err)
	assert.Equal(t, identity.RoleViewer, id.Role)

	_, err = chain.Resolve(context.Background(), newRequest(map[string]string{HeaderAuthorization: "Bearer broken", HeaderUserEmail: "viewer@company.com"}))
	assert.ErrorIs(t, err, fault.ErrUnauthenticated)
	assert.NotErrorIs(t, err, ErrNoCredential)

	_, err = chain.Resolve(context.Background(), newRequest(nil))
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, fault.Unauthenticated, fault.KindOf(err))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	static := &Static{Identity: identity.Identity{Email: "admin@company.com", Role: identity.RoleAdmin}}
	id, err := static.Resolve(context.Background(), nil)
	require.NoError(t, err)
	actual, ok := FromContext(NewContext(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, id, actual)
}
