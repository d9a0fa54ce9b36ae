package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type ExportRepository interface {
	Create(ctx context.Context, e *models.Export) error
	Get(ctx context.Context, id string) (*models.Export, error)
	ListByCV(ctx context.Context, cvID string, limit int) ([]models.Export, error)
	ObjectKeysByUser(ctx context.Context, userID string) ([]string, error)
	ObjectKeysByCV(ctx context.Context, cvID string) ([]string, error)
	Update(ctx context.Context, e *models.Export) error
}

type exportRepo struct {
	db *gorm.DB
}

func NewExportRepo(db *gorm.DB) ExportRepository {
	return &exportRepo{db: db}
}

func (r *exportRepo) Create(ctx context.Context, e *models.Export) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *exportRepo) Get(ctx context.Context, id string) (*models.Export, error) {
	var e models.Export
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *exportRepo) ListByCV(ctx context.Context, cvID string, limit int) ([]models.Export, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Export
	err := r.db.WithContext(ctx).
		Where("cv_id = ?", cvID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *exportRepo) objectKeys(ctx context.Context, column, id string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Model(&models.Export{}).
		Where(column+" = ? AND object_key <> ''", id).
		Pluck("object_key", &keys).Error
	return keys, err
}

func (r *exportRepo) ObjectKeysByUser(ctx context.Context, userID string) ([]string, error) {
	return r.objectKeys(ctx, "user_id", userID)
}

func (r *exportRepo) ObjectKeysByCV(ctx context.Context, cvID string) ([]string, error) {
	return r.objectKeys(ctx, "cv_id", cvID)
}

func (r *exportRepo) Update(ctx context.Context, e *models.Export) error {
	res := r.db.WithContext(ctx).
		Model(e).
		Select("status", "file_name", "object_key", "size_bytes", "error", "completed_at").
		Updates(e)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
