package model

import "time"

const (
	UserRoleStaff    = "staff"
	UserRolePlatform = "platform_admin"
)

const (
	MemberRoleMember = "member"
	MemberRoleAdmin  = "admin"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership ties a user to an organization with an org-scoped role.
// DefaultLocationID seeds new intake batches; LocationID, when set,
// restricts the member to a single campus.
type Membership struct {
	ID                int64     `json:"id"`
	OrganizationID    int64     `json:"organization_id"`
	UserID            int64     `json:"user_id"`
	Role              string    `json:"role"`
	DefaultLocationID *int64    `json:"default_location_id"`
	LocationID        *int64    `json:"location_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
