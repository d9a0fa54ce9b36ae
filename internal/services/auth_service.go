package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/mailer"
	"github.com/cvitapilot/cvitapilot/internal/models"
	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/repositories/redisrepo"
	"github.com/cvitapilot/cvitapilot/internal/utils"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

const (
	oauthStateTTL    = 10 * time.Minute
	authCodeTTL      = 60 * time.Second
	passwordResetTTL = time.Hour
)

// ClientMeta identifies the device a session is opened from.
type ClientMeta struct {
	UserAgent string
	IP        string
}

type AuthResult struct {
	User   *models.User      `json:"user"`
	Tokens *models.TokenPair `json:"tokens"`
}

// Principal is the authenticated caller resolved from an access token.
type Principal struct {
	UserID    string
	SessionID string
	Role      string
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"max=120"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string, meta ClientMeta) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*models.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)
	Logout(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context, userID string) ([]*models.AuthSession, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
	GoogleAuthURL(ctx context.Context) (string, error)
	CompleteGoogle(ctx context.Context, code, state string, meta ClientMeta) (string, error)
	ExchangeAuthCode(ctx context.Context, authCode string) (*AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AuthSettings struct {
	FrontendURL     string
	VerificationTTL time.Duration
	RefreshTTL      time.Duration
}

type AuthDeps struct {
	Users     pgrepo.UserRepository
	Tokens    pgrepo.TokenRepository
	Sessions  redisrepo.SessionRepository
	States    redisrepo.StateStore
	AuthCodes redisrepo.AuthCodeStore
	Issuer    *TokenIssuer
	Google    GoogleOAuth // nil when Google sign-in is disabled
	Mailer    mailer.Mailer
	Logger    *logrus.Logger
}

type authService struct {
	AuthDeps
	cfg AuthSettings
	now func() time.Time
}

func NewAuthService(deps AuthDeps, cfg AuthSettings) AuthService {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &authService{AuthDeps: deps, cfg: cfg, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "AuthService.Register"

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email is required", nil)
	}
	hash, err := utils.HashPassword(in.Password)
	if errors.Is(err, utils.ErrWeakPassword) {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{
		Email:        email,
		Name:         validation.NewSanitizer().Clean(in.Name),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			return nil, utils.E(utils.CodeConflict, op, "email already registered", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}

	if err := s.sendVerification(ctx, u); err != nil {
		// the account exists; the user can ask for a new link
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("verification email failed")
	}
	return u, nil
}

// issueToken replaces any previous token of the same kind and returns the raw value.
func (s *authService) issueToken(ctx context.Context, userID string, kind models.TokenKind, ttl time.Duration) (string, error) {
	raw, err := utils.NewOpaqueToken(32)
	if err != nil {
		return "", err
	}
	if err := s.Tokens.DeleteByUser(ctx, userID, kind); err != nil {
		return "", err
	}
	t := &models.VerificationToken{
		UserID:    userID,
		Kind:      kind,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.Tokens.Create(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *authService) frontendLink(path, token string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (s *authService) sendVerification(ctx context.Context, u *models.User) error {
	raw, err := s.issueToken(ctx, u.ID, models.TokenEmailVerification, s.cfg.VerificationTTL)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, mailer.VerificationEmail(u.Email, u.Name, s.frontendLink("/verify-email", raw)))
}

// consumeToken validates a mailed token and returns its owner.
func (s *authService) consumeToken(ctx context.Context, op, raw string, kind models.TokenKind) (*models.User, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "token is required", nil)
	}
	t, err := s.Tokens.GetByHash(ctx, utils.HashToken(raw))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid or expired token", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load token", err)
	}
	if t.Kind != kind || t.Expired(s.now()) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid or expired token", nil)
	}
	u, err := s.Users.GetByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid or expired token", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if err := s.Tokens.DeleteByUser(ctx, u.ID, kind); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to consume token", err)
	}
	return u, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	const op = "AuthService.VerifyEmail"

	u, err := s.consumeToken(ctx, op, token, models.TokenEmailVerification)
	if err != nil {
		return nil, err
	}
	if u.IsVerified() {
		return u, nil
	}
	now := s.now().UTC()
	u.EmailVerifiedAt = &now
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to verify user", err)
	}
	return u, nil
}

func (s *authService) ResendVerification(ctx context.Context, email string) error {
	const op = "AuthService.ResendVerification"

	u, err := s.Users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, utils.ErrNotFound) {
		return nil
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if u.IsVerified() {
		return nil
	}
	if err := s.sendVerification(ctx, u); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to send verification email", err)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, email, password string, meta ClientMeta) (*AuthResult, error) {
	const op = "AuthService.Login"

	u, err := s.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if u == nil || utils.CheckPassword(u.PasswordHash, password) != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid email or password", nil)
	}
	if !u.IsVerified() {
		return nil, utils.E(utils.CodeForbidden, op, "email not verified", nil)
	}
	return s.signIn(ctx, op, u, meta)
}

func (s *authService) signIn(ctx context.Context, op string, u *models.User, meta ClientMeta) (*AuthResult, error) {
	now := s.now().UTC()
	u.LastSignInAt = &now
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update user", err)
	}
	pair, err := s.openSession(ctx, u, meta, now)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return &AuthResult{User: u, Tokens: pair}, nil
}

func (s *authService) openSession(ctx context.Context, u *models.User, meta ClientMeta, createdAt time.Time) (*models.TokenPair, error) {
	refresh, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &models.AuthSession{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		RefreshHash: utils.HashToken(refresh),
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IP,
		CreatedAt:   createdAt,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(s.cfg.RefreshTTL),
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	access, exp, err := s.Issuer.Issue(u, sess.ID)
	if err != nil {
		_ = s.Sessions.Delete(ctx, sess.ID)
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    exp,
		SessionID:    sess.ID,
	}, nil
}

// Refresh rotates the session: the old session and refresh token stop working.
func (s *authService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*models.TokenPair, error) {
	const op = "AuthService.Refresh"

	if refreshToken == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "refresh_token is required", nil)
	}
	old, err := s.Sessions.GetByRefreshHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "invalid refresh token", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if err := s.Sessions.Delete(ctx, old.ID); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to rotate session", err)
	}

	u, err := s.Users.GetByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "invalid refresh token", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = old.UserAgent
	}
	pair, err := s.openSession(ctx, u, meta, old.CreatedAt)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return pair, nil
}

func (s *authService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	const op = "AuthService.Authenticate"

	claims, err := s.Issuer.Parse(accessToken)
	if err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid token", err)
	}
	sess, err := s.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "session revoked", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to check session", err)
	}
	if sess.UserID != claims.Subject {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid token", nil)
	}
	return &Principal{UserID: claims.Subject, SessionID: claims.SessionID, Role: claims.Role}, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	const op = "AuthService.Logout"

	if err := s.Sessions.Delete(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete session", err)
	}
	return nil
}

func (s *authService) ListSessions(ctx context.Context, userID string) ([]*models.AuthSession, error) {
	const op = "AuthService.ListSessions"

	list, err := s.Sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	for _, ss := range list {
		ss.RefreshHash = ""
	}
	return list, nil
}

func (s *authService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	const op = "AuthService.RevokeSession"

	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if sess.UserID != userID {
		return utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	if err := s.Sessions.Delete(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete session", err)
	}
	return nil
}

func (s *authService) RevokeAll(ctx context.Context, userID string) error {
	const op = "AuthService.RevokeAll"

	if err := s.Sessions.DeleteByUser(ctx, userID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete sessions", err)
	}
	return nil
}

func (s *authService) GoogleAuthURL(ctx context.Context) (string, error) {
	const op = "AuthService.GoogleAuthURL"

	if s.Google == nil {
		return "", utils.E(utils.CodeUnavailable, op, "google sign-in is not configured", nil)
	}
	state, err := utils.NewOpaqueToken(24)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to create state", err)
	}
	if err := s.States.Put(ctx, state, oauthStateTTL); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to store state", err)
	}
	return s.Google.AuthURL(state), nil
}

// CompleteGoogle signs the user in and returns a one-time code the front end
// exchanges for the token pair.
func (s *authService) CompleteGoogle(ctx context.Context, code, state string, meta ClientMeta) (string, error) {
	const op = "AuthService.CompleteGoogle"

	if s.Google == nil {
		return "", utils.E(utils.CodeUnavailable, op, "google sign-in is not configured", nil)
	}
	if code == "" || state == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "code and state are required", nil)
	}
	ok, err := s.States.Consume(ctx, state)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to check state", err)
	}
	if !ok {
		return "", utils.E(utils.CodeInvalidArgument, op, "invalid state", nil)
	}

	gu, err := s.Google.Exchange(ctx, code)
	if err != nil {
		return "", utils.E(utils.CodeUnauthorized, op, "google sign-in failed", err)
	}
	u, err := s.findOrCreateGoogleUser(ctx, gu)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to resolve user", err)
	}
	res, err := s.signIn(ctx, op, u, meta)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to encode result", err)
	}
	authCode := uuid.NewString()
	if err := s.AuthCodes.Put(ctx, authCode, payload, authCodeTTL); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to store auth code", err)
	}
	return authCode, nil
}

func (s *authService) findOrCreateGoogleUser(ctx context.Context, gu *GoogleUser) (*models.User, error) {
	u, err := s.Users.GetByGoogleID(ctx, gu.Sub)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	email := normalizeEmail(gu.Email)

	// link to an existing account only when Google vouches for the address
	if gu.EmailVerified && email != "" {
		u, err = s.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			u.GoogleID = &gu.Sub
			if !u.IsVerified() {
				u.EmailVerifiedAt = &now
			}
			if u.Name == "" {
				u.Name = gu.Name
			}
			if err := s.Users.Update(ctx, u); err != nil {
				return nil, err
			}
			return u, nil
		case !errors.Is(err, utils.ErrNotFound):
			return nil, err
		}
	}

	if email == "" || !gu.EmailVerified {
		return nil, errors.New("google account has no verified email")
	}
	sub := gu.Sub
	u = &models.User{
		Email:           email,
		Name:            validation.NewSanitizer().Clean(gu.Name),
		GoogleID:        &sub,
		Role:            models.RoleUser,
		EmailVerifiedAt: &now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *authService) ExchangeAuthCode(ctx context.Context, authCode string) (*AuthResult, error) {
	const op = "AuthService.ExchangeAuthCode"

	b, err := s.AuthCodes.Take(ctx, authCode)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "invalid or expired auth code", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load auth code", err)
	}
	var res AuthResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "corrupt auth code payload", err)
	}
	return &res, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "AuthService.RequestPasswordReset"

	u, err := s.Users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, utils.ErrNotFound) {
		return nil
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	raw, err := s.issueToken(ctx, u.ID, models.TokenPasswordReset, passwordResetTTL)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create reset token", err)
	}
	msg := mailer.PasswordResetEmail(u.Email, u.Name, s.frontendLink("/reset-password", raw))
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to send reset email", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "AuthService.ResetPassword"

	if len(newPassword) < utils.MinPasswordLength {
		return utils.E(utils.CodeInvalidArgument, op, utils.ErrWeakPassword.Error(), utils.ErrWeakPassword)
	}
	u, err := s.consumeToken(ctx, op, token, models.TokenPasswordReset)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}
	u.PasswordHash = hash
	if !u.IsVerified() {
		// the reset link proves ownership of the address
		now := s.now().UTC()
		u.EmailVerifiedAt = &now
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update password", err)
	}
	if err := s.Sessions.DeleteByUser(ctx, u.ID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to revoke sessions", err)
	}
	return nil
}
