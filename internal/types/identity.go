package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type IdentityKind string

const (
	IdentityUser  IdentityKind = "user"
	IdentityGuest IdentityKind = "guest"
)

// Identity is the tagged caller variant: an authenticated user (uid + role)
// or a guest reviewer identified only by self-declared name and email.
type Identity struct {
	Kind       IdentityKind
	UserID     uuid.UUID
	Role       UserRole
	GuestName  string
	GuestEmail string
}

func UserIdentity(userID uuid.UUID, role UserRole) Identity {
	return Identity{Kind: IdentityUser, UserID: userID, Role: role}
}

func GuestIdentity(name, email string) Identity {
	return Identity{
		Kind:       IdentityGuest,
		GuestName:  strings.TrimSpace(name),
		GuestEmail: strings.ToLower(strings.TrimSpace(email)),
	}
}

func (i Identity) IsZero() bool {
	return i.Kind == ""
}

// Key is the stable attribution key: the user id for authenticated callers,
// "guest-{email}" for guests. A guest keeps the same key across a session so
// their own comments stay attributable without an account.
func (i Identity) Key() string {
	if i.Kind == IdentityGuest {
		return fmt.Sprintf("guest-%s", i.GuestEmail)
	}
	return i.UserID.String()
}

func (i Identity) DisplayName() string {
	if i.Kind == IdentityGuest {
		return i.GuestName
	}
	return i.UserID.String()
}

// Internal reports whether the identity belongs to a staff role that
// bypasses the payment gate on downloads.
func (i Identity) Internal() bool {
	if i.Kind != IdentityUser {
		return false
	}
	switch i.Role {
	case RoleAdmin, RoleProjectManager, RoleEditor:
		return true
	}
	return false
}

func (i Identity) CanManageProjects() bool {
	return i.Kind == IdentityUser && (i.Role == RoleAdmin || i.Role == RoleProjectManager)
}

func (i Identity) Validate() error {
	switch i.Kind {
	case IdentityUser:
		if i.UserID == uuid.Nil {
			return fmt.Errorf("authenticated identity requires a user id")
		}
		return nil
	case IdentityGuest:
		if i.GuestName == "" || i.GuestEmail == "" {
			return fmt.Errorf("guest identity requires name and email")
		}
		return nil
	}
	return fmt.Errorf("unknown identity kind %q", i.Kind)
}
