package domain

import "github.com/google/uuid"

// Principal is the authenticated caller. Handlers build it from the verified
// token and pass it into every service call that acts on behalf of a user.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Email    string
	Role     Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
