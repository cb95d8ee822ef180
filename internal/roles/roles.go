// Package roles resolves a caller's role on a form from the permission list
// embedded in the form document, and maps roles to capabilities.
package roles

import (
	"context"
	"fmt"
	"log/slog"
)

// Role is an ordered capability tier. Each role implies every capability
// of the roles below it.
type Role int

const (
	None Role = iota
	Respondent
	Viewer
	Editor
	Admin
	Owner
)

var roleNames = [...]string{"none", "respondent", "viewer", "editor", "admin", "owner"}

// String returns the wire name of the role.
func (r Role) String() string {
	if r < None || r > Owner {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole parses a wire role name.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return None, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r < None || r > Owner {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// AtLeast reports whether r is min or above.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// SubjectType identifies who a grant applies to.
type SubjectType string

const (
	SubjectUser   SubjectType = "user"
	SubjectGroup  SubjectType = "group"
	SubjectPublic SubjectType = "public"
)

// Subject is the target of a grant. ID is empty for public grants.
type Subject struct {
	Type SubjectType `json:"type"`
	ID   string      `json:"id,omitempty"`
}

// Grant gives a role to a subject.
type Grant struct {
	Subject Subject `json:"subject"`
	Role    Role    `json:"role"`
}

// Permissions is the permission list stored on a form document.
type Permissions struct {
	Owner string  `json:"owner"`
	Roles []Grant `json:"roles"`
}

// GroupOracle answers group-membership questions for group grants.
type GroupOracle interface {
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

// Resolve returns the role of userID on a form.
//
// Resolution order:
//  1. userID is the owner -> Owner
//  2. first user grant naming userID
//  3. first group grant whose group contains userID
//  4. first public grant
//  5. None
//
// An empty userID is an unauthenticated caller and only matches public
// grants. Oracle errors count as non-membership. A nil oracle disables
// group grants.
func Resolve(ctx context.Context, perms Permissions, userID string, oracle GroupOracle) Role {
	if userID != "" {
		if perms.Owner != "" && perms.Owner == userID {
			return Owner
		}

		for _, g := range perms.Roles {
			if g.Subject.Type == SubjectUser && g.Subject.ID == userID {
				return g.Role
			}
		}

		if oracle != nil {
			for _, g := range perms.Roles {
				if g.Subject.Type != SubjectGroup {
					continue
				}
				member, err := oracle.IsMember(ctx, userID, g.Subject.ID)
				if err != nil {
					slog.Warn("group membership lookup failed",
						"user", userID,
						"group", g.Subject.ID,
						"error", err,
					)
					continue
				}
				if member {
					return g.Role
				}
			}
		}
	}

	for _, g := range perms.Roles {
		if g.Subject.Type == SubjectPublic {
			return g.Role
		}
	}

	return None
}

// StaticGroups is a GroupOracle backed by a fixed membership table,
// keyed by user id.
type StaticGroups map[string][]string

// IsMember implements GroupOracle.
func (s StaticGroups) IsMember(_ context.Context, userID, groupID string) (bool, error) {
	for _, g := range s[userID] {
		if g == groupID {
			return true, nil
		}
	}
	return false, nil
}
