package model

import (
	"time"

	"gorm.io/gorm"
)

// AccountSecurity tracks authentication health per developer: failed
// attempts, lockout state, suspicion score and password history. LockedUntil
// non-nil and in the future means authentication attempts are rejected
// regardless of credential correctness.
type AccountSecurity struct {
	ID          uint `gorm:"primarykey"`
	DeveloperID uint `gorm:"uniqueIndex;not null"`

	FailedAttempts    int `gorm:"default:0;not null"`
	LastFailedAttempt *time.Time

	LockedUntil *time.Time
	LockReason  string `gorm:"size:256"`

	LastSuccessfulLogin *time.Time
	LoginCount          int64 `gorm:"default:0;not null"`

	SuspiciousActivityScore int      `gorm:"default:0;not null"`
	SuspiciousIPs           []string `gorm:"serializer:json"`

	PasswordLastChanged   *time.Time
	PasswordHistoryHashes []string `gorm:"serializer:json"`

	MFAEnabled bool   `gorm:"default:false;not null"`
	MFASecret  string `gorm:"size:128"`

	SecurityNotifications bool `gorm:"default:true;not null"`
	LoginAlerts           bool `gorm:"default:true;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *AccountSecurity) BeforeCreate(tx *gorm.DB) error {
	if s.ID == 0 {
		s.ID = GenerateID()
	}
	return nil
}

// Locked reports whether the account is locked at the given instant.
func (s *AccountSecurity) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}
