package rbac

import (
	"context"

	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type UserRoleRepository interface {
	FindByDeveloper(ctx context.Context, developerID uint) ([]*model.UserRole, error)
	Create(ctx context.Context, grant *model.UserRole) error
	Delete(ctx context.Context, developerID uint, role string) (int64, error)
}

type UserPermissionRepository interface {
	FindByDeveloper(ctx context.Context, developerID uint) ([]*model.UserPermission, error)
	FirstByID(ctx context.Context, id uint) (*model.UserPermission, error)
	Create(ctx context.Context, grant *model.UserPermission) error
	Delete(ctx context.Context, id uint) (int64, error)
}

type userRoleRepository struct {
	db *gorm.DB
}

func (r *userRoleRepository) FindByDeveloper(ctx context.Context, developerID uint) ([]*model.UserRole, error) {
	var grants []*model.UserRole
	err := r.db.WithContext(ctx).Where("developer_id = ?", developerID).Find(&grants).Error
	return grants, err
}

func (r *userRoleRepository) Create(ctx context.Context, grant *model.UserRole) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *userRoleRepository) Delete(ctx context.Context, developerID uint, role string) (int64, error) {
	ret := r.db.WithContext(ctx).Where("developer_id = ? AND role = ?", developerID, role).Delete(&model.UserRole{})
	return ret.RowsAffected, ret.Error
}

func NewUserRoleRepository(db *gorm.DB) UserRoleRepository {
	return &userRoleRepository{db: db}
}

type userPermissionRepository struct {
	db *gorm.DB
}

func (r *userPermissionRepository) FindByDeveloper(ctx context.Context, developerID uint) ([]*model.UserPermission, error) {
	var grants []*model.UserPermission
	err := r.db.WithContext(ctx).Where("developer_id = ?", developerID).Find(&grants).Error
	return grants, err
}

func (r *userPermissionRepository) FirstByID(ctx context.Context, id uint) (*model.UserPermission, error) {
	var grant model.UserPermission
	err := r.db.WithContext(ctx).First(&grant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *userPermissionRepository) Create(ctx context.Context, grant *model.UserPermission) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *userPermissionRepository) Delete(ctx context.Context, id uint) (int64, error) {
	ret := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.UserPermission{})
	return ret.RowsAffected, ret.Error
}

func NewUserPermissionRepository(db *gorm.DB) UserPermissionRepository {
	return &userPermissionRepository{db: db}
}
