package models

import "time"

// Notification is an append-only user-facing message tied to transfer and
// application lifecycle events.
type Notification struct {
	ID        int32     `json:"id"`
	UserID    int32     `json:"user_id"`
	Message   string    `json:"message"`
	Redirect  string    `json:"redirect,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
