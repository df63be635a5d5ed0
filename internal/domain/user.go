package domain

import "time"

// ============================================================
// Users
// ============================================================

// Role is the console role of a user.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RolePartner Role = "PARTNER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePartner
}

// UserProfile is the console profile linked to a Supabase Auth user.
type UserProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Role        Role      `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user has the ADMIN role.
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanManageTenant reports whether the user may read or change the tenant.
func (u *UserProfile) CanManageTenant(t *Tenant) bool {
	if u == nil || t == nil || !u.Active {
		return false
	}
	return u.IsAdmin() || t.PartnerID == u.ID
}

// UpdateUserRequest is the body for PUT /v1/users/{userId}.
// Role and Active are only honored for admins.
type UpdateUserRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	CompanyName *string `json:"company_name,omitempty" validate:"omitempty,max=120"`
	Role        *Role   `json:"role,omitempty" validate:"omitempty,oneof=ADMIN PARTNER"`
	Active      *bool   `json:"active,omitempty"`
}
