package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type stubAuth struct {
	tokens map[string]*services.Principal
	err    error
}

func (s stubAuth) Authenticate(_ context.Context, raw string) (*services.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.tokens[raw]; ok {
		return p, nil
	}
	return nil, utils.E(utils.CodeUnauthorized, "stub", "invalid token", nil)
}

func newRouter(auth Authenticator, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWTAuth(auth)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	r.GET("/me", handlers...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var users = stubAuth{tokens: map[string]*services.Principal{
	"user-token":  {UserID: "u1", SessionID: "s1", Role: "user"},
	"admin-token": {UserID: "u2", SessionID: "s2", Role: "admin"},
}}

func TestJWTAuth(t *testing.T) {
	r := newRouter(users)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"user"}`, w.Body.String())
}

func TestJWTAuth_QueryTokenOnlyForUpgrades(t *testing.T) {
	r := newRouter(users)

	req := httptest.NewRequest(http.MethodGet, "/me?access_token=user-token", nil)
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me?access_token=user-token", nil)
	req.Header.Set("Upgrade", "websocket")
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestJWTAuth_SessionStoreDown(t *testing.T) {
	r := newRouter(stubAuth{err: utils.E(utils.CodeUnavailable, "stub", "failed to check session", nil)})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	assert.Equal(t, http.StatusServiceUnavailable, do(r, req).Code)
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter(users, RequireAdmin())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(l))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := do(r, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":204`)
}

func TestRequestLogger_QuietPaths(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	r := gin.New()
	r.Use(RequestLogger(l, "/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())
}
