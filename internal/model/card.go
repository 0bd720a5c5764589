package model

import "time"

// Visitor card lifecycle.
const (
	CardStatusNew       = "new"
	CardStatusReviewed  = "reviewed"
	CardStatusDuplicate = "duplicate"
)

// Prayer workflow, for cards that carry a request.
const (
	PrayerStatusPending  = "pending"
	PrayerStatusAssigned = "assigned"
	PrayerStatusPraying  = "praying"
	PrayerStatusAnswered = "answered"
)

// VisitorCard is one scanned connect card. Cards are always scoped to
// exactly one organization and are only reachable through org-filtered
// queries.
type VisitorCard struct {
	ID             int64    `json:"id"`
	OrganizationID int64    `json:"organization_id"`
	LocationID     *int64   `json:"location_id"`
	BatchID        *int64   `json:"batch_id"`
	Name           string   `json:"name"`
	Email          *string  `json:"email"`
	Phone          *string  `json:"phone"`
	PrayerRequest  *string  `json:"prayer_request"`
	Notes          *string  `json:"notes"`
	Interests      []string `json:"interests"`
	IsPrivate      bool     `json:"is_private"`
	IsUrgent       bool     `json:"is_urgent"`
	WantsFollowUp  bool     `json:"wants_follow_up"`
	Status         string   `json:"status"`
	PrayerStatus   string   `json:"prayer_status"`
	Category       *string  `json:"category"`

	// AssignedName is a display cache, recomputed on every assignment
	// change. Permission checks always re-resolve the assignee.
	AssignedTo   *int64  `json:"assigned_to"`
	AssignedName *string `json:"assigned_name"`

	PhotoKey     *string    `json:"photo_key,omitempty"`
	ScannedAt    time.Time  `json:"scanned_at"`
	FollowedUpAt *time.Time `json:"followed_up_at"`
	AnsweredAt   *time.Time `json:"answered_at"`
	AnswerNote   *string    `json:"answer_note"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPrayerRequest reports whether the card entered the prayer workflow.
func (c *VisitorCard) HasPrayerRequest() bool {
	return c.PrayerRequest != nil && *c.PrayerRequest != ""
}
