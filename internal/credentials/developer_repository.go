package credentials

import (
	"context"

	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type DeveloperRepository interface {
	FirstByID(ctx context.Context, id uint) (*model.Developer, error)
	FirstByEmail(ctx context.Context, email string) (*model.Developer, error)
	Create(ctx context.Context, developer *model.Developer) error
	Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error)
}

type developerRepository struct {
	db *gorm.DB
}

func (r *developerRepository) FirstByID(ctx context.Context, id uint) (*model.Developer, error) {
	var developer model.Developer
	err := r.db.WithContext(ctx).First(&developer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &developer, nil
}

func (r *developerRepository) FirstByEmail(ctx context.Context, email string) (*model.Developer, error) {
	var developer model.Developer
	err := r.db.WithContext(ctx).First(&developer, "email = ?", email).Error
	if err != nil {
		return nil, err
	}
	return &developer, nil
}

func (r *developerRepository) Create(ctx context.Context, developer *model.Developer) error {
	return r.db.WithContext(ctx).Create(developer).Error
}

func (r *developerRepository) Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.Developer{}).Where("id = ?", id).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func NewDeveloperRepository(db *gorm.DB) DeveloperRepository {
	return &developerRepository{db: db}
}
