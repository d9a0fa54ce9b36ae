package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type TutorialRepository interface {
	Get(ctx context.Context, userID string) (*models.TutorialProgress, error)
	Upsert(ctx context.Context, p *models.TutorialProgress) error
	Delete(ctx context.Context, userID string) error
}

type tutorialRepo struct {
	col *mongo.Collection
}

func NewTutorialRepo(db *mongo.Database) TutorialRepository {
	return &tutorialRepo{col: db.Collection("tutorial_progress")}
}

func (r *tutorialRepo) Get(ctx context.Context, userID string) (*models.TutorialProgress, error) {
	var p models.TutorialProgress
	err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *tutorialRepo) Upsert(ctx context.Context, p *models.TutorialProgress) error {
	p.UpdatedAt = time.Now().UTC()
	if p.StartedAt.IsZero() {
		p.StartedAt = p.UpdatedAt
	}
	if p.Completed == nil {
		p.Completed = []string{}
	}
	doc := *p
	doc.ID = primitive.NilObjectID // keep the stored _id
	_, err := r.col.ReplaceOne(ctx,
		bson.M{"user_id": p.UserID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *tutorialRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}
