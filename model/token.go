package model

import (
	"time"

	"gorm.io/gorm"
)

// OAuthToken is the issuance record of one access token. JTI is globally
// unique and immutable; the row is the single source of truth for
// revocation. Rows are never deleted before the retention window.
type OAuthToken struct {
	ID          uint      `gorm:"primarykey"`
	ProjectID   uint      `gorm:"index;not null"`
	DeveloperID uint      `gorm:"index;not null"`
	TokenType   string    `gorm:"size:16;not null;default:Bearer"`
	Scopes      []string  `gorm:"serializer:json"`
	JTI         string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
	Revoked     bool      `gorm:"default:false;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t *OAuthToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == 0 {
		t.ID = GenerateID()
	}
	return nil
}

// Valid reports whether the token is usable at the given instant.
func (t *OAuthToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
