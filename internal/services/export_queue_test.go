package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisExportQueue_Enqueue(t *testing.T) {
	rdb := newRedis(t)
	q := NewRedisExportQueue(rdb, "test:exports")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, ExportJob{ExportID: "e1", UserID: "u1"}))

	msgs, err := rdb.XRange(ctx, "test:exports", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "e1", msgs[0].Values["export_id"])
	assert.Equal(t, "u1", msgs[0].Values["user_id"])
}

func TestRedisExportQueue_PublishStatus(t *testing.T) {
	rdb := newRedis(t)
	q := NewRedisExportQueue(rdb, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, ExportStatusChannel("e1"))
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, q.PublishStatus(ctx, ExportStatusMessage{ExportID: "e1", Status: "done", FileName: "CV.pdf"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got ExportStatusMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "status", got.Type)
	assert.Equal(t, "done", got.Status)
	assert.Equal(t, "CV.pdf", got.FileName)
}
