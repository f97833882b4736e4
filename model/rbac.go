package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserRole grants a named role to a developer. A developer holds a role at
// most once concurrently; expired grants are excluded from resolution but
// retained for audit.
type UserRole struct {
	ID          uint   `gorm:"primarykey"`
	DeveloperID uint   `gorm:"not null;index:idx_developer_role,unique"`
	Role        string `gorm:"size:32;not null;index:idx_developer_role,unique"`
	GrantedBy   uint   `gorm:"not null"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == 0 {
		r.ID = GenerateID()
	}
	return nil
}

// Expired reports whether the grant is past its expiry at the given instant.
func (r *UserRole) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// UserPermission is a custom (resource, action) grant beyond role defaults.
// Grants are additive only; there are no deny records.
type UserPermission struct {
	ID          uint           `gorm:"primarykey"`
	DeveloperID uint           `gorm:"index;not null"`
	Resource    string         `gorm:"size:64;not null"`
	Action      string         `gorm:"size:64;not null"`
	Conditions  datatypes.JSON `gorm:"type:json"`
	GrantedBy   uint           `gorm:"not null"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *UserPermission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == 0 {
		p.ID = GenerateID()
	}
	return nil
}

func (p *UserPermission) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}
