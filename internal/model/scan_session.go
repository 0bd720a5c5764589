package model

import "time"

// ScanSession is the one-time credential behind a scan QR code. The
// token is consumed exactly once; the phone continues with a signed
// cookie afterwards.
type ScanSession struct {
	ID             int64      `json:"id"`
	Token          string     `json:"token"`
	UserID         int64      `json:"user_id"`
	OrganizationID int64      `json:"organization_id"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UsedAt         *time.Time `json:"used_at"`
	CreatedAt      time.Time  `json:"created_at"`
}
