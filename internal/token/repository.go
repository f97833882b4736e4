package token

import (
	"context"
	"time"

	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type TokenRepository interface {
	Create(ctx context.Context, token *model.OAuthToken) error
	FirstByJTI(ctx context.Context, jti string) (*model.OAuthToken, error)
	// RevokeByJTI flips Revoked on an unrevoked row and reports how many
	// rows changed. At most one row can match; zero means the token was
	// unknown or already revoked.
	RevokeByJTI(ctx context.Context, jti string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.OAuthToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) FirstByJTI(ctx context.Context, jti string) (*model.OAuthToken, error) {
	var token model.OAuthToken
	err := r.db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) RevokeByJTI(ctx context.Context, jti string) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.OAuthToken{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true)
	return ret.RowsAffected, ret.Error
}

func (r *tokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&model.OAuthToken{})
	return ret.RowsAffected, ret.Error
}
