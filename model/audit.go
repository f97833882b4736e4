package model

import (
	"time"

	"gorm.io/datatypes"
)

// SecurityEvent is an append-only audit record. Rows are never updated after
// insertion; ordering is by CreatedAt with the auto-increment ID breaking
// ties.
type SecurityEvent struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	EventType      string         `gorm:"size:64;not null;index"`
	Severity       string         `gorm:"size:16;not null;index"` // info, warning, error, critical
	DeveloperID    uint           `gorm:"index"`
	ProjectID      uint           `gorm:"index"`
	IP             string         `gorm:"size:45"`
	UserAgent      string         `gorm:"size:512"`
	RequestID      string         `gorm:"size:64"`
	Success        bool           `gorm:"not null"`
	Reason         string         `gorm:"size:512"` // failure reason or context, internal only
	Resource       string         `gorm:"size:64"`
	Action         string         `gorm:"size:64"`
	Metadata       datatypes.JSON `gorm:"type:json"`
	ComplianceTags []string       `gorm:"serializer:json"`
	RiskScore      uint8          `gorm:"not null;default:0"` // 0-100
	CreatedAt      time.Time      `gorm:"autoCreateTime;index"`
}

func (SecurityEvent) TableName() string {
	return "security_event"
}
