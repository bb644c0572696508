package auth

import (
	"errors"
	"time"
)

// Role is a user-level classification gating coarse actions such as
// "may create new resources at all". It is not a per-resource grant.
type Role string

const (
	RoleViewer      Role = "Viewer"
	RoleContributor Role = "Contributor"
	RoleCreator     Role = "Creator"
	RoleSuperAdmin  Role = "Super Admin"
)

// Role levels, ordered. A user's effective level is the maximum of the
// stored role level and SuperAdmin when the staff/superuser flags are set.
const (
	LevelViewer      = 1
	LevelContributor = 2
	LevelCreator     = 3
	LevelSuperAdmin  = 4

	// LevelNoAccess is returned for unrecognized role names
	LevelNoAccess = -1
)

// ErrRoleNotFound is returned when an unrecognized role name is supplied
var ErrRoleNotFound = errors.New("role does not exist")

var roleLevels = map[Role]int{
	RoleViewer:      LevelViewer,
	RoleContributor: LevelContributor,
	RoleCreator:     LevelCreator,
	RoleSuperAdmin:  LevelSuperAdmin,
}

// ParseRole validates a role name
func ParseRole(name string) (Role, error) {
	role := Role(name)
	if _, ok := roleLevels[role]; !ok {
		return "", ErrRoleNotFound
	}
	return role, nil
}

// Level returns the ordinal level of a role, or LevelNoAccess for an
// unknown role name
func (r Role) Level() int {
	if level, ok := roleLevels[r]; ok {
		return level
	}
	return LevelNoAccess
}

// User represents an account. Role, IsStaff and IsSuperuser together
// determine the user's effective role level.
type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Role        Role       `json:"role"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// LevelFor returns the effective role level for a user. Staff and
// superuser accounts are always SuperAdmin. A nil user (anonymous
// request) degrades to Viewer rather than erroring; per-object checks
// decide what an anonymous caller may actually see.
func LevelFor(user *User) int {
	if user == nil {
		return LevelViewer
	}
	if user.IsSuperuser || user.IsStaff {
		return LevelSuperAdmin
	}
	return user.Role.Level()
}

// IsAdmin reports whether the user bypasses all per-object checks
func IsAdmin(user *User) bool {
	return LevelFor(user) >= LevelSuperAdmin
}

// IsCreator reports whether the user may create new resources
func IsCreator(user *User) bool {
	return LevelFor(user) >= LevelCreator
}

// Group is a named collection of users. Groups are themselves protected
// resources: sharing a group requires OWNER on it.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatorID   int64     `json:"creator_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// APIToken is a bearer credential tied to a user
type APIToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	TokenHash  string     `json:"-"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Context carries the authenticated caller through a request. User is
// nil for anonymous requests when the middleware runs in optional mode.
type Context struct {
	User  *User
	Token *APIToken
}
