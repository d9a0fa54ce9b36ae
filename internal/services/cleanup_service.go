package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

// CleanupReport summarises one cleanup run.
type CleanupReport struct {
	Cutoff          time.Time `json:"cutoff"`
	DryRun          bool      `json:"dry_run"`
	UnverifiedUsers int64     `json:"unverified_users"`
	ExpiredTokens   int64     `json:"expired_tokens"`
}

type CleanupService interface {
	PurgeUnverified(ctx context.Context, now time.Time, dryRun bool) (int64, error)
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	Run(ctx context.Context, now time.Time, dryRun bool) (*CleanupReport, error)
}

type cleanupService struct {
	users  pgrepo.UserRepository
	tokens pgrepo.TokenRepository
	ttl    time.Duration
	log    *logrus.Logger
}

// NewCleanupService removes accounts left unverified for longer than ttl.
func NewCleanupService(users pgrepo.UserRepository, tokens pgrepo.TokenRepository, ttl time.Duration, log *logrus.Logger) CleanupService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	return &cleanupService{users: users, tokens: tokens, ttl: ttl, log: log}
}

func (s *cleanupService) PurgeUnverified(ctx context.Context, now time.Time, dryRun bool) (int64, error) {
	const op = "CleanupService.PurgeUnverified"

	cutoff := now.Add(-s.ttl)
	if dryRun {
		n, err := s.users.CountUnverifiedBefore(ctx, cutoff)
		if err != nil {
			return 0, utils.E(utils.CodeInternal, op, "failed to count unverified users", err)
		}
		return n, nil
	}
	n, err := s.users.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to delete unverified users", err)
	}
	return n, nil
}

func (s *cleanupService) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "CleanupService.PurgeExpiredTokens"

	n, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to delete expired tokens", err)
	}
	return n, nil
}

// Run purges unverified accounts first so their tokens go with the cascade.
// A dry run only counts accounts and leaves tokens alone.
func (s *cleanupService) Run(ctx context.Context, now time.Time, dryRun bool) (*CleanupReport, error) {
	rep := &CleanupReport{Cutoff: now.Add(-s.ttl).UTC(), DryRun: dryRun}

	n, err := s.PurgeUnverified(ctx, now, dryRun)
	if err != nil {
		return nil, err
	}
	rep.UnverifiedUsers = n

	if !dryRun {
		if rep.ExpiredTokens, err = s.PurgeExpiredTokens(ctx, now); err != nil {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"dry_run":          dryRun,
		"unverified_users": rep.UnverifiedUsers,
		"expired_tokens":   rep.ExpiredTokens,
		"cutoff":           rep.Cutoff,
	}).Info("cleanup finished")
	return rep, nil
}
