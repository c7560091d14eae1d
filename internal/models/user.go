package models

import (
	"time"

	"github.com/parksense/parksense-api/internal/types"
)

// Role is the authorization role of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a registered person who may drive one or more cars
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username  string    `gorm:"size:150" json:"username"`
	Role      Role      `gorm:"size:16;not null;default:user" json:"role"`
	Ban       bool      `gorm:"not null;default:false" json:"ban"`
	ChatID    *int64    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserPatch is a partial update of the signed in user's own profile
type UserPatch struct {
	Username types.Optional[string] `json:"username"`
}

// ChatBinding attaches a messenger chat to the user with the e-mail address
type ChatBinding struct {
	Email  string `json:"email" validate:"required,email"`
	ChatID *int64 `json:"chat_id" validate:"required"`
}
