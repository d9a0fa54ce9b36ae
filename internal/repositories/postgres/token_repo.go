package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type TokenRepository interface {
	Create(ctx context.Context, t *models.VerificationToken) error
	GetByHash(ctx context.Context, hash string) (*models.VerificationToken, error)
	DeleteByUser(ctx context.Context, userID string, kind models.TokenKind) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepo struct {
	db *gorm.DB
}

func NewTokenRepo(db *gorm.DB) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) Create(ctx context.Context, t *models.VerificationToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tokenRepo) GetByHash(ctx context.Context, hash string) (*models.VerificationToken, error) {
	var t models.VerificationToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepo) DeleteByUser(ctx context.Context, userID string, kind models.TokenKind) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Delete(&models.VerificationToken{}).Error
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.VerificationToken{})
	return res.RowsAffected, res.Error
}
