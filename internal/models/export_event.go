package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExportEvent is an audit entry for an export's lifecycle, expired by a TTL index.
type ExportEvent struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ExportID string             `bson:"export_id" json:"export_id"`
	UserID   string             `bson:"user_id" json:"user_id"`
	Status   ExportStatus       `bson:"status" json:"status"`
	Message  string             `bson:"message,omitempty" json:"message,omitempty"`

	DurationMS int64     `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"-"` // for TTL index
}
