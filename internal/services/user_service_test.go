package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/repositories/redisrepo"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type userFixture struct {
	svc       UserService
	users     *fakeUsers
	cvs       *fakeCVs
	exports   *fakeExports
	sessions  redisrepo.SessionRepository
	tutorials *fakeTutorials
	events    *fakeEvents
	store     *fakeStore
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		users:     newFakeUsers(),
		cvs:       newFakeCVs(),
		exports:   newFakeExports(),
		sessions:  redisrepo.NewSessionRepo(newRedis(t)),
		tutorials: newFakeTutorials(),
		events:    &fakeEvents{},
		store:     newFakeStore(),
	}
	f.svc = NewUserService(UserDeps{
		Users:     f.users,
		CVs:       f.cvs,
		Exports:   f.exports,
		Sessions:  f.sessions,
		Tutorials: f.tutorials,
		Events:    f.events,
		Store:     f.store,
		Logger:    quietLogger(),
	})
	return f
}

func (f *userFixture) addUser(t *testing.T, password string) *models.User {
	t.Helper()
	u := &models.User{Email: "ada@example.com", Role: models.RoleUser}
	if password != "" {
		hash, err := utils.HashPassword(password)
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestUser_UpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	u := f.addUser(t, "correct horse")

	got, err := f.svc.UpdateProfile(context.Background(), u.ID, " <i>Ada</i> Lovelace ")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)

	_, err = f.svc.Me(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestUser_ChangePassword(t *testing.T) {
	f := newUserFixture(t)
	u := f.addUser(t, "correct horse")
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, u.ID, "wrong horse", "battery staple")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	err = f.svc.ChangePassword(ctx, u.ID, "correct horse", "short")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "correct horse", "battery staple"))
	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NoError(t, utils.CheckPassword(stored.PasswordHash, "battery staple"))
}

func TestUser_GoogleOnlyAccountSetsPassword(t *testing.T) {
	f := newUserFixture(t)
	u := f.addUser(t, "")

	require.NoError(t, f.svc.ChangePassword(context.Background(), u.ID, "", "battery staple"))
}

func TestUser_DeleteAccountCascades(t *testing.T) {
	f := newUserFixture(t)
	u := f.addUser(t, "correct horse")
	ctx := context.Background()

	require.NoError(t, f.cvs.Create(ctx, &models.CV{ID: "cv1", UserID: u.ID}))
	require.NoError(t, f.exports.Create(ctx, &models.Export{ID: "e1", UserID: u.ID, CVID: "cv1", ObjectKey: "exports/x/e1.pdf"}))
	require.NoError(t, f.tutorials.Upsert(ctx, &models.TutorialProgress{UserID: u.ID}))
	require.NoError(t, f.events.Insert(ctx, &models.ExportEvent{ExportID: "e1", UserID: u.ID}))
	now := time.Now()
	require.NoError(t, f.sessions.Create(ctx, &models.AuthSession{
		ID: "s1", UserID: u.ID, RefreshHash: "h", CreatedAt: now, LastUsedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	err := f.svc.DeleteAccount(ctx, u.ID, "wrong horse")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	require.NoError(t, f.svc.DeleteAccount(ctx, u.ID, "correct horse"))

	_, err = f.users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Equal(t, []string{"exports/x/e1.pdf"}, f.store.deleted)
	_, err = f.tutorials.Get(ctx, u.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Empty(t, f.events.events)
	list, err := f.sessions.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUser_SetRole(t *testing.T) {
	f := newUserFixture(t)
	f.addUser(t, "correct horse")
	ctx := context.Background()

	u, err := f.svc.SetRole(ctx, " ADA@example.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = f.svc.SetRole(ctx, "ada@example.com", "root")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.svc.SetRole(ctx, "ghost@example.com", models.RoleAdmin)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
