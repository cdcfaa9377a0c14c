package models

// Actor is the caller of a booking operation: either an AuthenticatedUser or a Guest.
type Actor interface {
	isActor()
}

type AuthenticatedUser struct {
	ID    string
	Email string
	Role  Role
}

type Guest struct{}

func (AuthenticatedUser) isActor() {}
func (Guest) isActor()             {}

func (u AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u AuthenticatedUser) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// AsUser unwraps the authenticated variant. A nil actor is treated as a guest.
func AsUser(a Actor) (AuthenticatedUser, bool) {
	u, ok := a.(AuthenticatedUser)
	return u, ok
}
