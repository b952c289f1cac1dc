package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the author and actor record recipes, ratings and comments point
// at. Accounts and sessions live in the upstream auth service; only the
// fields the search document needs are kept here.
type User struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      *string   `gorm:"type:text" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

// generateUUID assigns primary keys in Go so sqlite and postgres agree
func generateUUID() string {
	return uuid.NewString()
}
