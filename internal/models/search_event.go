package models

import (
	"time"

	"gorm.io/gorm"
)

// SearchEvent is one recorded recipe search, kept for analytics.
// Rows are written best-effort and never read on the request path.
type SearchEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      *string   `gorm:"type:uuid;index" json:"user_id"` // Nullable for anonymous searches
	Query       *string   `gorm:"type:text" json:"query"`
	Ingredients []string  `gorm:"type:jsonb;serializer:json" json:"ingredients"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}

func (e *SearchEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}
