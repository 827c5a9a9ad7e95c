package models

import "time"

type UserSession struct {
	Session string `db:"user_session" json:"session"`
}

// A session row as stored by the Postgres session store. ExpiresAt is nil for
// sessions that live until they are removed.
type SessionRecord struct {
	Session   string     `db:"user_session"`
	UserID    int        `db:"user_id"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt *time.Time `db:"expires_at"`
}
