package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message for a user
type Notification struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	UserID    uuid.UUID    `db:"user_id" json:"user_id"`
	Message   string       `db:"message" json:"message"`
	IsRead    bool         `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// UnreadCountResponse for unread count endpoint
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
