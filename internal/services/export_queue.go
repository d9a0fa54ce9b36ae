package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// ExportJob is one queued PDF rendering.
type ExportJob struct {
	ExportID string
	UserID   string
}

// ExportStatusMessage is published on the export's status channel.
type ExportStatusMessage struct {
	Type        string `json:"type"`
	ExportID    string `json:"export_id"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

type ExportQueue interface {
	Enqueue(ctx context.Context, job ExportJob) error
	PublishStatus(ctx context.Context, msg ExportStatusMessage) error
}

func ExportStatusChannel(exportID string) string {
	return "export:" + exportID + ":status"
}

type redisExportQueue struct {
	rdb    *redis.Client
	stream string
}

// NewRedisExportQueue feeds the export worker pool through a Redis stream.
func NewRedisExportQueue(rdb *redis.Client, stream string) ExportQueue {
	if stream == "" {
		stream = "export:stream"
	}
	return &redisExportQueue{rdb: rdb, stream: stream}
}

func (q *redisExportQueue) Enqueue(ctx context.Context, job ExportJob) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"export_id": job.ExportID,
			"user_id":   job.UserID,
		},
	}).Err()
}

func (q *redisExportQueue) PublishStatus(ctx context.Context, msg ExportStatusMessage) error {
	if msg.Type == "" {
		msg.Type = "status"
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.rdb.Publish(ctx, ExportStatusChannel(msg.ExportID), b).Err()
}
