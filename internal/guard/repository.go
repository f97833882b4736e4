package guard

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type AccountSecurityRepository interface {
	FirstByDeveloper(ctx context.Context, developerID uint) (*model.AccountSecurity, error)
	Create(ctx context.Context, record *model.AccountSecurity) error
	Updates(ctx context.Context, developerID uint, columns map[string]interface{}) (int64, error)
}

type accountSecurityRepository struct {
	db *gorm.DB
}

func NewAccountSecurityRepository(db *gorm.DB) AccountSecurityRepository {
	return &accountSecurityRepository{db: db}
}

func (r *accountSecurityRepository) FirstByDeveloper(ctx context.Context, developerID uint) (*model.AccountSecurity, error) {
	var record model.AccountSecurity
	err := r.db.WithContext(ctx).Where("developer_id = ?", developerID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *accountSecurityRepository) Create(ctx context.Context, record *model.AccountSecurity) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *accountSecurityRepository) Updates(ctx context.Context, developerID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.AccountSecurity{}).
		Where("developer_id = ?", developerID).
		Updates(columns)
	return ret.RowsAffected, ret.Error
}

// ensure loads the record for a developer, creating it on first contact.
// A concurrent creator winning the unique index race is fine, the loser
// re-reads.
func ensure(ctx context.Context, repo AccountSecurityRepository, developerID uint) (*model.AccountSecurity, error) {
	record, err := repo.FirstByDeveloper(ctx, developerID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	record = &model.AccountSecurity{DeveloperID: developerID}
	err = repo.Create(ctx, record)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return repo.FirstByDeveloper(ctx, developerID)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
