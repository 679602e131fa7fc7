// internal/domain/user/entity.go
package user

import "time"

type Role string

const (
	RoleUser       Role = "USER"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleTechnician || r == RoleAdmin
}

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Avatar     string    `json:"avatar,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasRole checks if the user has exactly the given role
func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// IsAdmin checks if user is an admin
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// IsTechnician is true for technicians and admins, who may both triage.
func (u *User) IsTechnician() bool {
	return u.HasRole(RoleTechnician) || u.HasRole(RoleAdmin)
}

type Filters struct {
	Search string
	Role   Role
}

type UpdateRoleRequest struct {
	Role Role `json:"role"`
}

type UpdateDepartmentRequest struct {
	Department string `json:"department"`
}
