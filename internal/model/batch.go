package model

import "time"

const (
	BatchStatusPending   = "pending"
	BatchStatusCompleted = "completed"
)

// IntakeBatch groups the cards scanned during one collection session.
// At most one pending batch exists per (organization, creator) pair.
type IntakeBatch struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	LocationID     *int64    `json:"location_id"`
	CreatedBy      int64     `json:"created_by"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BatchSummary is the shape returned by the active-batch lookup.
type BatchSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	LocationID *int64 `json:"location_id"`
	CardCount  int64  `json:"card_count"`
}
