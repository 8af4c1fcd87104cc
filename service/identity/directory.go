package identity

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/service/meta"
)

// User is one directory entry.
type User struct {
	Email string `json:"email" yaml:"email" mapstructure:"email"`
	Role  string `json:"role" yaml:"role" mapstructure:"role"`
}

// DefaultUsers is the built-in directory used when none is configured.
func DefaultUsers() []User {
	return []User{
		{Email: "viewer@company.com", Role: string(identity.RoleViewer)},
		{Email: "steward@company.com", Role: string(identity.RoleSteward)},
		{Email: "data.owner@company.com", Role: string(identity.RoleDataOwner)},
		{Email: "admin@company.com", Role: string(identity.RoleAdmin)},
	}
}

// Directory resolves the X-User-Email header through an email -> role map.
type Directory struct {
	users map[string]identity.Role
}

// NewDirectory builds a directory; entries with an empty email or role are rejected.
func NewDirectory(users []User) (*Directory, error) {
	ret := &Directory{users: make(map[string]identity.Role, len(users))}
	for i, user := range users {
		email := identity.NormalizeEmail(user.Email)
		role := identity.ParseRole(user.Role)
		if email == "" || role == "" {
			return nil, fmt.Errorf("invalid directory entry %d: email and role are required", i)
		}
		ret.users[email] = role
	}
	return ret, nil
}

type directoryDocument struct {
	Users []User `yaml:"users"`
}

// ParseDirectory decodes a YAML document with a top-level users list.
func ParseDirectory(data []byte) (*Directory, error) {
	doc := &directoryDocument{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse user directory: %w", err)
	}
	return NewDirectory(doc.Users)
}

// LoadDirectory reads a YAML directory document from URL; ${env.KEY}
// expressions are expanded first.
func LoadDirectory(ctx context.Context, fs afs.Service, URL string) (*Directory, error) {
	data, err := meta.New(fs).Download(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load user directory %s: %w", URL, err)
	}
	return ParseDirectory(data)
}

// Lookup returns the identity registered for email.
func (d *Directory) Lookup(email string) (*identity.Identity, bool) {
	email = identity.NormalizeEmail(email)
	role, ok := d.users[email]
	if !ok {
		return nil, false
	}
	return &identity.Identity{Email: email, Role: role}, true
}

// Users returns directory entries sorted by email.
func (d *Directory) Users() []User {
	ret := make([]User, 0, len(d.users))
	for email, role := range d.users {
		ret = append(ret, User{Email: email, Role: string(role)})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Email < ret[j].Email })
	return ret
}

func (d *Directory) Resolve(_ context.Context, r *http.Request) (*identity.Identity, error) {
	email := identity.NormalizeEmail(r.Header.Get(HeaderUserEmail))
	if email == "" {
		return nil, ErrNoCredential
	}
	id, ok := d.Lookup(email)
	if !ok {
		return nil, fault.NewForbiddenError("user %s is not allowed", email)
	}
	return id, nil
}
