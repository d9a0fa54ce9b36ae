package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
	CountUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.ErrDuplicate
	}
	return err
}

func (r *userRepo) take(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where(query, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.take(ctx, "id = ?", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.take(ctx, "email = ?", email)
}

func (r *userRepo) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.take(ctx, "google_id = ?", googleID)
}

func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	res := r.db.WithContext(ctx).
		Model(u).
		Omit("id", "created_at").
		Select("*").
		Updates(u)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return utils.ErrDuplicate
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// Delete removes the user; CVs, their items and tokens go through FK cascades.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Export{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return nil
	})
}

func (r *userRepo) unverifiedBefore(ctx context.Context, cutoff time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("email_verified_at IS NULL AND created_at < ?", cutoff)
}

func (r *userRepo) CountUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.unverifiedBefore(ctx, cutoff).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (r *userRepo) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.unverifiedBefore(ctx, cutoff).Delete(&models.User{})
	return res.RowsAffected, res.Error
}
