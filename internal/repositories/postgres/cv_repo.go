package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type CVRepository interface {
	Create(ctx context.Context, cv *models.CV) error
	Get(ctx context.Context, id string) (*models.CV, error)
	ListByUser(ctx context.Context, userID string) ([]models.CV, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// SaveAggregate overwrites the CV row and replaces every child collection.
	SaveAggregate(ctx context.Context, cv *models.CV) error
	Delete(ctx context.Context, id string) error
}

var childAssociations = []string{
	"Skills",
	"Languages",
	"Experiences",
	"Educations",
	"Certifications",
	"Achievements",
	"References",
	"SocialNetworks",
	"Competences",
	"SoftSkills",
}

type cvRepo struct {
	db *gorm.DB
}

func NewCVRepo(db *gorm.DB) CVRepository {
	return &cvRepo{db: db}
}

func (r *cvRepo) Create(ctx context.Context, cv *models.CV) error {
	return r.db.WithContext(ctx).Create(cv).Error
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }

func (r *cvRepo) Get(ctx context.Context, id string) (*models.CV, error) {
	q := r.db.WithContext(ctx)
	for _, assoc := range childAssociations {
		q = q.Preload(assoc, byPosition)
	}
	var cv models.CV
	err := q.Where("id = ?", id).Take(&cv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *cvRepo) ListByUser(ctx context.Context, userID string) ([]models.CV, error) {
	var rows []models.CV
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *cvRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.CV{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

func (r *cvRepo) SaveAggregate(ctx context.Context, cv *models.CV) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(cv).
			Omit(clause.Associations, "id", "user_id", "created_at").
			Select("*").
			Updates(cv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}

		steps := []func() error{
			func() error { return replaceItems(tx, cv.ID, cv.Skills) },
			func() error { return replaceItems(tx, cv.ID, cv.Languages) },
			func() error { return replaceItems(tx, cv.ID, cv.Experiences) },
			func() error { return replaceItems(tx, cv.ID, cv.Educations) },
			func() error { return replaceItems(tx, cv.ID, cv.Certifications) },
			func() error { return replaceItems(tx, cv.ID, cv.Achievements) },
			func() error { return replaceItems(tx, cv.ID, cv.References) },
			func() error { return replaceItems(tx, cv.ID, cv.SocialNetworks) },
			func() error { return replaceItems(tx, cv.ID, cv.Competences) },
			func() error { return replaceItems(tx, cv.ID, cv.SoftSkills) },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
}

func replaceItems[T any](tx *gorm.DB, cvID string, items []T) error {
	if err := tx.Where("cv_id = ?", cvID).Delete(new(T)).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

// Delete removes the CV and its export records; items go through the FK cascade.
func (r *cvRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cv_id = ?", id).Delete(&models.Export{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.CV{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return nil
	})
}
