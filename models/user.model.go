package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered customer or administrator.
type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name                string             `bson:"name" json:"name"`
	Email               string             `bson:"email" json:"email"`
	Password            string             `bson:"password,omitempty" json:"-"`
	Role                string             `bson:"role" json:"role"` // "user" or "admin"
	ResetPasswordToken  string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpire *time.Time         `bson:"resetPasswordExpire,omitempty" json:"-"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
}

// IsAdmin reports whether u holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil
}

// RoleUpdate is the admin-only update of a user's profile and role.
type RoleUpdate struct {
	Name  string
	Email string
	Role  string
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
