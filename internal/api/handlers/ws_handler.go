package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// WSHandler streams export progress from Redis pub/sub to the browser.
type WSHandler struct {
	exports  services.ExportService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(exports services.ExportService, rdb *redis.Client, allowedOrigin string) *WSHandler {
	return &WSHandler{
		exports: exports,
		redis:   rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(kind int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(kind, b)
}

func finalStatus(s string) bool {
	return s == string(models.ExportDone) || s == string(models.ExportFailed)
}

func snapshot(e *models.Export) []byte {
	b, _ := json.Marshal(services.ExportStatusMessage{
		Type:        "status",
		ExportID:    e.ID,
		Status:      string(e.Status),
		Message:     e.Error,
		FileName:    e.FileName,
		DownloadURL: e.DownloadURL,
	})
	return b
}

func (h *WSHandler) ExportProgress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	exportID := c.Param("export_id")

	// ownership check before the upgrade so errors are plain JSON
	e, err := h.exports.Get(c.Request.Context(), userID, exportID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, services.ExportStatusChannel(exportID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return
	}

	// re-read after subscribing so a status published in between is not lost
	if fresh, err := h.exports.Get(ctx, userID, exportID); err == nil {
		e = fresh
	}
	if err := wc.write(websocket.TextMessage, snapshot(e)); err != nil || e.Finished() {
		_ = wc.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "finished"))
		return
	}

	// reader: only pongs and close frames are expected from the client
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	msgs := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := wc.write(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
			var st services.ExportStatusMessage
			if json.Unmarshal([]byte(m.Payload), &st) == nil && finalStatus(st.Status) {
				_ = wc.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "finished"))
				return
			}
		}
	}
}
