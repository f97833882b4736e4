package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Project is an OAuth2 client owned by exactly one developer. A token's
// granted scopes are always a subset of AllowedScopes at issuance time.
type Project struct {
	ID               uint     `gorm:"primarykey"`
	DeveloperID      uint     `gorm:"index;not null"`
	Name             string   `gorm:"size:100;not null"`
	Description      string   `gorm:"size:512"`
	Environment      string   `gorm:"size:16;not null;default:development"`
	ClientID         string   `gorm:"uniqueIndex;size:64;not null"`
	ClientSecretHash string   `gorm:"size:128;not null"`
	RedirectURIs     []string `gorm:"serializer:json"` // unused by client-credentials, kept for future grant types
	AllowedScopes    []string `gorm:"serializer:json"`
	RateLimitPerMin  int      `gorm:"default:0"` // 0 means the global default applies
	MonthlyQuota     int64    `gorm:"default:0"` // 0 means unlimited
	Active           bool     `gorm:"default:true;not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == 0 {
		p.ID = GenerateID()
	}
	return nil
}
