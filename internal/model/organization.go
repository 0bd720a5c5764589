package model

import "time"

type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a campus or site within an organization.
type Location struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OrgRefKind discriminates how an organization is addressed in purge flows.
type OrgRefKind string

const (
	OrgRefPlatform OrgRefKind = "platform" // platform operator, addressed by id
	OrgRefAgency   OrgRefKind = "agency"   // agency self-serve, addressed by slug
)

// OrgRef is a tagged reference to an organization. ID is meaningful for
// platform references, Slug for agency references.
type OrgRef struct {
	Kind OrgRefKind `json:"kind"`
	ID   int64      `json:"id,omitempty"`
	Slug string     `json:"slug,omitempty"`
}
