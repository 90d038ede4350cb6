package domain

import (
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// Session payload held server-side, keyed by the opaque cookie token.
type SessionData struct {
	UserID int64 `json:"user_id"`
}
