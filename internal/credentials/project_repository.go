package credentials

import (
	"context"

	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	FirstByID(ctx context.Context, id uint) (*model.Project, error)
	FirstByClientID(ctx context.Context, clientID string) (*model.Project, error)
	FindByDeveloper(ctx context.Context, developerID uint) ([]*model.Project, error)
	Create(ctx context.Context, project *model.Project) error
	Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error)
}

type projectRepository struct {
	db *gorm.DB
}

func (r *projectRepository) FirstByID(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FirstByClientID(ctx context.Context, clientID string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).First(&project, "client_id = ?", clientID).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FindByDeveloper(ctx context.Context, developerID uint) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).Where("developer_id = ?", developerID).Find(&projects).Error
	return projects, err
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}
