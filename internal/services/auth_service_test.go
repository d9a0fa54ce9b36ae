package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/repositories/redisrepo"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type authFixture struct {
	svc    AuthService
	users  *fakeUsers
	tokens *fakeTokens
	mail   *captureMailer
	google *fakeGoogle
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	rdb := newRedis(t)
	f := &authFixture{
		users:  newFakeUsers(),
		tokens: &fakeTokens{},
		mail:   &captureMailer{},
		google: &fakeGoogle{user: &GoogleUser{Sub: "g-1", Email: "Ada@Example.com", EmailVerified: true, Name: "Ada"}},
	}
	f.svc = NewAuthService(AuthDeps{
		Users:     f.users,
		Tokens:    f.tokens,
		Sessions:  redisrepo.NewSessionRepo(rdb),
		States:    redisrepo.NewStateStore(rdb),
		AuthCodes: redisrepo.NewAuthCodeStore(rdb),
		Issuer:    NewTokenIssuer("test-secret", "cvitapilot", time.Hour),
		Google:    f.google,
		Mailer:    f.mail,
		Logger:    quietLogger(),
	}, AuthSettings{FrontendURL: "https://app.test/", VerificationTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	return f
}

func (f *authFixture) registerVerified(t *testing.T, email, password string) *models.User {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: email, Password: password, Name: "Ada"})
	require.NoError(t, err)
	u, err := f.svc.VerifyEmail(ctx, tokenFrom(f.mail.last().Text))
	require.NoError(t, err)
	return u
}

func TestAuth_RegisterSendsVerification(t *testing.T) {
	f := newAuthFixture(t)

	u, err := f.svc.Register(context.Background(), RegisterInput{Email: "  Ada@Example.COM ", Password: "correct horse", Name: "<b>Ada</b>"})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
	assert.False(t, u.IsVerified())
	assert.Equal(t, models.RoleUser, u.Role)

	msg := f.mail.last()
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Contains(t, msg.Text, "https://app.test/verify-email?token=")
	assert.Equal(t, 1, f.tokens.count())
}

func TestAuth_RegisterDuplicateAndWeak(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "ADA@example.com", Password: "correct horse"})
	assert.True(t, utils.IsCode(err, utils.CodeConflict))

	_, err = f.svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "short"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestAuth_RegisterSurvivesMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.err = errors.New("smtp down")

	u, err := f.svc.Register(context.Background(), RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
}

func TestAuth_LoginRequiresVerifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{})
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = f.svc.VerifyEmail(ctx, tokenFrom(f.mail.last().Text))
	require.NoError(t, err)
	assert.Equal(t, 0, f.tokens.count(), "verification token is single use")

	res, err := f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{UserAgent: "test", IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.Tokens.TokenType)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.NotNil(t, res.User.LastSignInAt)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t, "ada@example.com", "correct horse")

	_, err := f.svc.Login(context.Background(), "ada@example.com", "wrong horse", ClientMeta{})
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	_, err = f.svc.Login(context.Background(), "nobody@example.com", "whatever1", ClientMeta{})
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}

func TestAuth_VerifyRejectsBadTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyEmail(ctx, "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.svc.VerifyEmail(ctx, "not-a-token")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestAuth_VerifyExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	f.svc.(*authService).now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.VerifyEmail(ctx, tokenFrom(f.mail.last().Text))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestAuth_AuthenticateAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerVerified(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{})
	require.NoError(t, err)

	p, err := f.svc.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, res.Tokens.SessionID, p.SessionID)
	assert.Equal(t, "user", p.Role)

	require.NoError(t, f.svc.Logout(ctx, p.SessionID))
	_, err = f.svc.Authenticate(ctx, res.Tokens.AccessToken)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}

func TestAuth_RefreshRotates(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{UserAgent: "firefox"})
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, res.Tokens.RefreshToken, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, res.Tokens.SessionID, pair.SessionID)

	_, err = f.svc.Refresh(ctx, res.Tokens.RefreshToken, ClientMeta{})
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized), "old refresh token is revoked")

	_, err = f.svc.Authenticate(ctx, res.Tokens.AccessToken)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized), "old session is revoked")

	_, err = f.svc.Authenticate(ctx, pair.AccessToken)
	assert.NoError(t, err)
}

func TestAuth_SessionsListAndRevoke(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerVerified(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	a, err := f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{UserAgent: "a"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{UserAgent: "b"})
	require.NoError(t, err)

	list, err := f.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Empty(t, s.RefreshHash)
	}

	err = f.svc.RevokeSession(ctx, "someone-else", a.Tokens.SessionID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	require.NoError(t, f.svc.RevokeSession(ctx, u.ID, a.Tokens.SessionID))
	list, err = f.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.RevokeAll(ctx, u.ID))
	list, err = f.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAuth_GoogleFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	state := authURL[len("https://accounts.test/auth?state="):]
	require.NotEmpty(t, state)

	code, err := f.svc.CompleteGoogle(ctx, "google-code", state, ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.CompleteGoogle(ctx, "google-code", state, ClientMeta{})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "state is single use")

	res, err := f.svc.ExchangeAuthCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.True(t, res.User.IsVerified())
	assert.NotEmpty(t, res.Tokens.AccessToken)

	_, err = f.svc.ExchangeAuthCode(ctx, code)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized), "auth code is single use")
}

type ttlCodes struct {
	redisrepo.AuthCodeStore
	ttl time.Duration
}

func (c *ttlCodes) Put(ctx context.Context, code string, payload []byte, ttl time.Duration) error {
	c.ttl = ttl
	return c.AuthCodeStore.Put(ctx, code, payload, ttl)
}

func TestAuth_GoogleCodeIsShortLived(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	svc := f.svc.(*authService)
	codes := &ttlCodes{AuthCodeStore: svc.AuthCodes}
	svc.AuthCodes = codes

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	_, err = f.svc.CompleteGoogle(ctx, "google-code", authURL[len("https://accounts.test/auth?state="):], ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, codes.ttl)
}

func TestAuth_GoogleLinksExistingAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	code, err := f.svc.CompleteGoogle(ctx, "c", authURL[len("https://accounts.test/auth?state="):], ClientMeta{})
	require.NoError(t, err)

	res, err := f.svc.ExchangeAuthCode(ctx, code)
	require.NoError(t, err)

	stored, err := f.users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, res.User.ID)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-1", *stored.GoogleID)
	assert.True(t, stored.IsVerified())
	assert.True(t, stored.HasPassword())
}

func TestAuth_GoogleRejectsUnverifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.google.user.EmailVerified = false
	ctx := context.Background()

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	_, err = f.svc.CompleteGoogle(ctx, "c", authURL[len("https://accounts.test/auth?state="):], ClientMeta{})
	assert.Error(t, err)
}

func TestAuth_GoogleDisabled(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.(*authService).Google = nil

	_, err := f.svc.GoogleAuthURL(context.Background())
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestAuth_PasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerVerified(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ada@example.com", "correct horse", ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ada@example.com"))
	msg := f.mail.last()
	assert.Contains(t, msg.Text, "https://app.test/reset-password?token=")

	require.NoError(t, f.svc.ResetPassword(ctx, tokenFrom(msg.Text), "battery staple"))

	_, err = f.svc.Authenticate(ctx, res.Tokens.AccessToken)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized), "reset revokes sessions")

	_, err = f.svc.Login(ctx, u.Email, "correct horse", ClientMeta{})
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
	_, err = f.svc.Login(ctx, u.Email, "battery staple", ClientMeta{})
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, tokenFrom(msg.Text), "another one")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "reset token is single use")
}

func TestAuth_ResetUnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	require.NoError(t, f.svc.ResendVerification(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.mail.sent)
}
