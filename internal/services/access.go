package services

import "github.com/parksense/parksense-api/internal/models"

// Caller is the authenticated user behind a request
type Caller struct {
	ID   uint
	Role models.Role
}

// IsAdmin reports whether the caller holds the admin role
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// CanAccess reports whether the caller may act on a resource owned by ownerID.
// Admins may access everything, other callers only what they own.
func CanAccess(caller Caller, ownerID uint) bool {
	if caller.IsAdmin() {
		return true
	}
	return caller.ID != 0 && caller.ID == ownerID
}

// CallerFromUser builds the request caller for a stored user
func CallerFromUser(u *models.User) Caller {
	return Caller{ID: u.ID, Role: u.Role}
}
