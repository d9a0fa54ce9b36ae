package workers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/services"
)

// ExportWorkerPool renders queued PDF exports. Each consumer reads the export
// stream through a shared consumer group, so a job is handled once.
//
// A job interrupted by shutdown is left unacknowledged. Consumers claim
// entries that stayed pending longer than ClaimIdle, at start and whenever
// the stream is idle, so such jobs are finished by the next process.
type ExportWorkerPool struct {
	Redis      *redis.Client
	Exports    services.ExportService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	Block          time.Duration
	ClaimIdle      time.Duration

	wg sync.WaitGroup
}

func (p *ExportWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Exports == nil {
		return errors.New("ExportWorkerPool missing dependency: Redis/Exports must be set")
	}
	if p.Stream == "" {
		p.Stream = "export:stream"
	}
	if p.Group == "" {
		p.Group = "export-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Block <= 0 {
		p.Block = 5 * time.Second
	}
	if p.ClaimIdle <= 0 {
		p.ClaimIdle = 5 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	err := p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	return nil
}

// Wait blocks until every consumer has returned after ctx was cancelled.
func (p *ExportWorkerPool) Wait() { p.wg.Wait() }

func (p *ExportWorkerPool) runConsumer(ctx context.Context, consumer string) {
	p.reclaim(ctx, consumer)
	lastClaim := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    p.Block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				if time.Since(lastClaim) >= p.ClaimIdle {
					p.reclaim(ctx, consumer)
					lastClaim = time.Now()
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("export stream read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.deliver(ctx, msg)
			}
		}
	}
}

// reclaim takes over entries other consumers left pending for ClaimIdle.
func (p *ExportWorkerPool) reclaim(ctx context.Context, consumer string) {
	start := "0-0"
	for ctx.Err() == nil {
		msgs, next, err := p.Redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   p.Stream,
			Group:    p.Group,
			Consumer: consumer,
			MinIdle:  p.ClaimIdle,
			Start:    start,
			Count:    10,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				p.Logger.WithError(err).WithField("consumer", consumer).Warn("export reclaim failed")
			}
			return
		}
		for _, msg := range msgs {
			p.Logger.WithField("redis_id", msg.ID).Info("reclaimed pending export")
			p.deliver(ctx, msg)
		}
		if next == "" || next == "0-0" {
			return
		}
		start = next
	}
}

func (p *ExportWorkerPool) deliver(ctx context.Context, msg redis.XMessage) {
	if !p.handleMsg(ctx, msg) {
		return
	}
	// acknowledge even when shutdown began after the job settled
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.Redis.XAck(actx, p.Stream, p.Group, msg.ID).Err(); err != nil {
		p.Logger.WithError(err).WithField("redis_id", msg.ID).Warn("export ack failed")
	}
}

// handleMsg reports whether the message is settled and can be acknowledged.
func (p *ExportWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	job := services.ExportJob{ExportID: getStr("export_id"), UserID: getStr("user_id")}
	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":  msg.ID,
		"export_id": job.ExportID,
		"user_id":   job.UserID,
	})
	if job.ExportID == "" {
		log.Warn("dropping export message without export_id")
		return true
	}

	start := time.Now()
	if err := p.Exports.Process(ctx, job); err != nil {
		if ctx.Err() != nil {
			log.WithError(err).Warn("export interrupted, leaving it pending")
			return false
		}
		log.WithError(err).Error("export failed")
		return true
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("export processed")
	return true
}
