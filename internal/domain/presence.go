package domain

import "time"

// Presence is the availability side profile created alongside every account.
// It is provisioned idempotently: registration writes it inside the creation
// transaction, and federated login backfills it for accounts that predate
// the table.
type Presence struct {
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	IsOnline      bool      `json:"is_online" dynamodbav:"is_online"`
	LastSeen      time.Time `json:"last_seen" dynamodbav:"last_seen"`
	StatusMessage string    `json:"status_message,omitempty" dynamodbav:"status_message"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

// NewPresence returns the initial presence record for a fresh account:
// offline, last seen at creation time.
func NewPresence(userID string, now time.Time) *Presence {
	return &Presence{
		UserID:    userID,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
