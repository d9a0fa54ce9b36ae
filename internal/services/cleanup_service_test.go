package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

func seedCleanup(t *testing.T, now time.Time) (*fakeUsers, *fakeTokens) {
	t.Helper()
	ctx := context.Background()
	users := newFakeUsers()
	verified := now.Add(-100 * time.Hour)

	for _, u := range []*models.User{
		{ID: "stale", Email: "stale@example.com", CreatedAt: now.Add(-80 * time.Hour)},
		{ID: "fresh", Email: "fresh@example.com", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "old-verified", Email: "ok@example.com", CreatedAt: now.Add(-200 * time.Hour), EmailVerifiedAt: &verified},
	} {
		require.NoError(t, users.Create(ctx, u))
	}

	tokens := &fakeTokens{}
	require.NoError(t, tokens.Create(ctx, &models.VerificationToken{UserID: "fresh", TokenHash: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &models.VerificationToken{UserID: "old-verified", TokenHash: "b", ExpiresAt: now.Add(-time.Hour)}))
	return users, tokens
}

func TestCleanup_DryRunCountsOnly(t *testing.T) {
	now := time.Now()
	users, tokens := seedCleanup(t, now)
	svc := NewCleanupService(users, tokens, 72*time.Hour, quietLogger())

	rep, err := svc.Run(context.Background(), now, true)
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.EqualValues(t, 1, rep.UnverifiedUsers)
	assert.Zero(t, rep.ExpiredTokens)

	_, err = users.GetByID(context.Background(), "stale")
	assert.NoError(t, err)
	assert.Equal(t, 2, tokens.count())
}

func TestCleanup_RunPurges(t *testing.T) {
	now := time.Now()
	users, tokens := seedCleanup(t, now)
	svc := NewCleanupService(users, tokens, 72*time.Hour, quietLogger())
	ctx := context.Background()

	rep, err := svc.Run(ctx, now, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.UnverifiedUsers)
	assert.EqualValues(t, 1, rep.ExpiredTokens)
	assert.Equal(t, now.Add(-72*time.Hour).UTC(), rep.Cutoff)

	_, err = users.GetByID(ctx, "stale")
	assert.Error(t, err)
	_, err = users.GetByID(ctx, "fresh")
	assert.NoError(t, err)
	_, err = users.GetByID(ctx, "old-verified")
	assert.NoError(t, err)

	// nothing left on a second pass
	rep, err = svc.Run(ctx, now, false)
	require.NoError(t, err)
	assert.Zero(t, rep.UnverifiedUsers)
	assert.Zero(t, rep.ExpiredTokens)
}
