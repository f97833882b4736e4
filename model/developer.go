package model

import (
	"time"

	"gorm.io/gorm"
)

// Developer is the identity of an API consumer organization or individual.
// Developers are soft-disabled, never hard-deleted: issued tokens and audit
// history keep referencing the row.
type Developer struct {
	ID           uint      `gorm:"primarykey"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"uniqueIndex;size:256;not null"`
	Company      string    `gorm:"size:100"`
	Title        string    `gorm:"size:100"`
	PasswordHash string    `gorm:"size:128;not null"`
	Verified     bool      `gorm:"default:false;not null"`
	Active       bool      `gorm:"default:true;not null"`
	Projects     []Project `gorm:"foreignKey:DeveloperID;references:ID;constraint:OnUpdate:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (d *Developer) BeforeCreate(tx *gorm.DB) error {
	if d.ID == 0 {
		d.ID = GenerateID()
	}
	return nil
}
