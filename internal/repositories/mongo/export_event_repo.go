package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

type ExportEventRepository interface {
	Insert(ctx context.Context, e *models.ExportEvent) error
	ListByExport(ctx context.Context, exportID string, limit int64) ([]models.ExportEvent, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type exportEventRepo struct {
	col       *mongo.Collection
	retention time.Duration
}

// NewExportEventRepo stores events that expire after retention via the TTL index.
func NewExportEventRepo(db *mongo.Database, retention time.Duration) ExportEventRepository {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &exportEventRepo{col: db.Collection("export_events"), retention: retention}
}

func (r *exportEventRepo) Insert(ctx context.Context, e *models.ExportEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.Timestamp.Add(r.retention)
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *exportEventRepo) ListByExport(ctx context.Context, exportID string, limit int64) ([]models.ExportEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	cur, err := r.col.Find(ctx,
		bson.M{"export_id": exportID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ExportEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *exportEventRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
