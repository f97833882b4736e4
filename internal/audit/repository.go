package audit

import (
	"context"
	"time"

	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

// QueryFilter narrows an audit trail query. Zero values are unset.
type QueryFilter struct {
	DeveloperID uint
	ProjectID   uint
	EventType   string
	Severity    string
	// ComplianceTag matches events carrying the tag, e.g. for a PCI_DSS
	// report pull.
	ComplianceTag string
	Since         time.Time
	Until         time.Time
	Limit         int
}

type SecurityEventRepository interface {
	Create(ctx context.Context, event *model.SecurityEvent) error
	Find(ctx context.Context, filter QueryFilter) ([]*model.SecurityEvent, error)
}

type securityEventRepository struct {
	db *gorm.DB
}

func NewSecurityEventRepository(db *gorm.DB) SecurityEventRepository {
	return &securityEventRepository{db: db}
}

func (r *securityEventRepository) Create(ctx context.Context, event *model.SecurityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *securityEventRepository) Find(ctx context.Context, filter QueryFilter) ([]*model.SecurityEvent, error) {
	query := r.db.WithContext(ctx).Model(&model.SecurityEvent{})
	if filter.DeveloperID != 0 {
		query = query.Where("developer_id = ?", filter.DeveloperID)
	}
	if filter.ProjectID != 0 {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.ComplianceTag != "" {
		// tags are a JSON string array; match the quoted element
		query = query.Where("compliance_tags LIKE ?", "%\""+filter.ComplianceTag+"\"%")
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at < ?", filter.Until)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var events []*model.SecurityEvent
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}
