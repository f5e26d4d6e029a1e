package model

import (
	"time"

	"github.com/google/uuid"
)

// URL represents a shortened URL entry in the system. UserID is nil for
// records created anonymously.
type URL struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Slug      string     `json:"slug" db:"slug"`
	TargetURL string     `json:"url" db:"url"`
	UserID    *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Visits    int64      `json:"visits" db:"visits"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
