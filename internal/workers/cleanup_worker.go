package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/services"
)

// CleanupWorker purges unverified accounts and expired tokens once at start and
// then on every tick until ctx is cancelled.
type CleanupWorker struct {
	Cleanup  services.CleanupService
	Interval time.Duration
	Logger   *logrus.Logger

	now func() time.Time
}

func (w *CleanupWorker) Run(ctx context.Context) {
	if w.Interval <= 0 {
		w.Interval = time.Hour
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	if w.now == nil {
		w.now = time.Now
	}

	w.tick(ctx)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *CleanupWorker) tick(ctx context.Context) {
	rep, err := w.Cleanup.Run(ctx, w.now(), false)
	if err != nil {
		if ctx.Err() == nil {
			w.Logger.WithError(err).Error("cleanup failed")
		}
		return
	}
	if rep.UnverifiedUsers > 0 || rep.ExpiredTokens > 0 {
		w.Logger.WithFields(logrus.Fields{
			"unverified_users": rep.UnverifiedUsers,
			"expired_tokens":   rep.ExpiredTokens,
			"cutoff":           rep.Cutoff,
		}).Info("cleanup done")
	}
}
