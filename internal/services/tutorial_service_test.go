package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

var testSteps = []models.TutorialStep{
	{ID: "welcome", Title: "Welcome"},
	{ID: "personal", Title: "Personal details"},
	{ID: "export", Title: "Export"},
}

func TestTutorial_FreshState(t *testing.T) {
	svc := NewTutorialService(newFakeTutorials(), testSteps)

	st, err := svc.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, st.Done)
	require.NotNil(t, st.Current)
	assert.Equal(t, "welcome", st.Current.ID)
	assert.Len(t, st.Steps, 3)

	_, err = svc.State(context.Background(), "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestTutorial_WalkThrough(t *testing.T) {
	repo := newFakeTutorials()
	svc := NewTutorialService(repo, testSteps)
	ctx := context.Background()

	st, err := svc.Next(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "personal", st.Current.ID)

	st, err = svc.Back(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "welcome", st.Current.ID)

	st, err = svc.Back(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Progress.CurrentStep, "back stops at the first step")

	for i := 0; i < 3; i++ {
		st, err = svc.Next(ctx, "u1")
		require.NoError(t, err)
	}
	assert.True(t, st.Done)
	assert.Nil(t, st.Current)
	assert.Equal(t, []string{"welcome", "personal", "export"}, st.Progress.Completed)

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, stored.CompletedAt)
}

func TestTutorial_SkipAndReset(t *testing.T) {
	svc := NewTutorialService(newFakeTutorials(), testSteps)
	ctx := context.Background()

	st, err := svc.Skip(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.True(t, st.Progress.Skipped)

	st, err = svc.Next(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Done, "next after completion keeps the tour closed")

	st, err = svc.Reset(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Done)
	assert.False(t, st.Progress.Skipped)
	assert.Empty(t, st.Progress.Completed)
	assert.Equal(t, "welcome", st.Current.ID)
}

func TestTutorial_Complete(t *testing.T) {
	svc := NewTutorialService(newFakeTutorials(), testSteps)

	st, err := svc.Complete(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.False(t, st.Progress.Skipped)
	assert.ElementsMatch(t, []string{"welcome", "personal", "export"}, st.Progress.Completed)
}
