package domain

import (
	"context"
	"fmt"
	"time"
)

// Role is the closed set of platform roles
type Role string

const (
	RoleUser       Role = "user"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOwner, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r may enter the admin area
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ParseRole validates a raw role value
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", s)}
	}
	return r, nil
}

// UserStatus is the account lifecycle of a profile
type UserStatus string

const (
	UserStatusActive          UserStatus = "active"
	UserStatusSuspended       UserStatus = "suspended"
	UserStatusPendingApproval UserStatus = "pending_approval"
)

// ParseUserStatus validates a raw user status value
func ParseUserStatus(s string) (UserStatus, error) {
	switch st := UserStatus(s); st {
	case UserStatusActive, UserStatusSuspended, UserStatusPendingApproval:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown user status %q", s)}
}

// Profile is the platform identity record, distinct from the auth credential
type Profile struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	FullName  *string    `db:"full_name" json:"full_name"`
	AvatarURL *string    `db:"avatar_url" json:"avatar_url"`
	Phone     *string    `db:"phone" json:"phone"`
	Role      Role       `db:"role" json:"role"`
	Status    UserStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfileSummary is the subset of a profile joined onto other records.
// Fields are nullable because the join is outer.
type ProfileSummary struct {
	FullName *string `db:"full_name" json:"full_name"`
	Email    *string `db:"email" json:"email"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
}

// ProfileFilter narrows profile counts and lists; zero values mean "any"
type ProfileFilter struct {
	Role   Role
	Status UserStatus
}

// ProfileRepository defines data access for profiles
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, profile *Profile) error
	List(ctx context.Context, filter ProfileFilter, offset, limit int) ([]*Profile, error)
	Count(ctx context.Context, filter ProfileFilter) (int, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]*Profile, error)
	UpdateRole(ctx context.Context, id string, role Role, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status UserStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}
