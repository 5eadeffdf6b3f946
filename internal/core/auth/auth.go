// Package auth authenticates the small fixed set of configured users and
// decides what each of them may do to a task.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/colonyops/taskflow/internal/core/task"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
// The two cases are deliberately indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Role is one of the two fixed user roles.
type Role string

const (
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleManager || r == RoleMember
}

// User is an authenticated identity.
type User struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsManager reports whether the user holds the manager role.
func (u User) IsManager() bool {
	return u.Role == RoleManager
}

// Credential is a configured user with either a bcrypt hash or a plaintext
// secret (loaded from the environment). Hash wins when both are set.
type Credential struct {
	Name         string
	Role         Role
	PasswordHash string
	Password     string
}

// Directory holds the configured credentials.
type Directory struct {
	users map[string]Credential
}

// NewDirectory builds a directory. Names are matched case-insensitively.
func NewDirectory(creds []Credential) (*Directory, error) {
	d := &Directory{users: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return nil, fmt.Errorf("user name cannot be empty")
		}
		if !c.Role.IsValid() {
			return nil, fmt.Errorf("user %q: invalid role %q", c.Name, c.Role)
		}
		if _, exists := d.users[key]; exists {
			return nil, fmt.Errorf("duplicate user %q", c.Name)
		}
		d.users[key] = c
	}
	return d, nil
}

// Authenticate checks a name/password pair.
func (d *Directory) Authenticate(name, password string) (User, error) {
	c, ok := d.users[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		// Burn comparable time for unknown users.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return User{}, ErrInvalidCredentials
	}

	switch {
	case c.PasswordHash != "":
		if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
			return User{}, ErrInvalidCredentials
		}
	case c.Password != "":
		if subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) != 1 {
			return User{}, ErrInvalidCredentials
		}
	default:
		return User{}, ErrInvalidCredentials
	}

	return User{Name: c.Name, Role: c.Role}, nil
}

// Lookup returns the user with the given name without checking a password.
func (d *Directory) Lookup(name string) (User, bool) {
	c, ok := d.users[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return User{}, false
	}
	return User{Name: c.Name, Role: c.Role}, true
}

// Users returns every configured user.
func (d *Directory) Users() []User {
	out := make([]User, 0, len(d.users))
	for _, c := range d.users {
		out = append(out, User{Name: c.Name, Role: c.Role})
	}
	return out
}

// HashPassword returns a bcrypt hash suitable for the password_hash setting.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// bcrypt hash of an unguessable string, used only to equalize timing.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoO5ZQ1n0vJ3F6n1gQ0sUeH8yD9pQZ1n8W"

// CanCreate reports whether u may create tasks. Only managers assign work.
func CanCreate(u User) bool {
	return u.IsManager()
}

// CanModify reports whether u may update t: managers may update anything,
// members only tasks assigned to them.
func CanModify(u User, t task.Task) bool {
	if u.IsManager() {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(t.AssignedTo), strings.TrimSpace(u.Name))
}

// CanReassign reports whether u may change the assignee of a task.
func CanReassign(u User) bool {
	return u.IsManager()
}
