package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type AuthHandler struct {
	svc         services.AuthService
	frontendURL string
	log         *logrus.Logger
}

func NewAuthHandler(svc services.AuthService, frontendURL string, log *logrus.Logger) *AuthHandler {
	if log == nil {
		log = logrus.New()
	}
	return &AuthHandler{svc: svc, frontendURL: frontendURL, log: log}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type exchangeRequest struct {
	AuthCode string `json:"auth_code" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bindJSON(c, "AuthHandler.Register", &req) {
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":    u,
		"message": "check your inbox to verify your email",
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, "AuthHandler.Login", &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, "AuthHandler.Refresh", &req) {
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Verify accepts the token as JSON body (POST) or query string (GET link).
func (h *AuthHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if c.Request.Method == http.MethodPost {
		var req tokenRequest
		if !bindJSON(c, "AuthHandler.Verify", &req) {
			return
		}
		token = req.Token
	}
	u, err := h.svc.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "verified": true})
}

func (h *AuthHandler) Resend(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, "AuthHandler.Resend", &req) {
		return
	}
	if err := h.svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists and is not verified, an email was sent"})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, "AuthHandler.ForgotPassword", &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, a reset link was sent"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, "AuthHandler.ResetPassword", &req) {
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), c.GetString("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) ListSessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListSessions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	current := c.GetString("session_id")
	out := make([]gin.H, 0, len(list))
	for _, s := range list {
		out = append(out, gin.H{
			"id":           s.ID,
			"user_agent":   s.UserAgent,
			"ip_address":   s.IPAddress,
			"created_at":   s.CreatedAt,
			"last_used_at": s.LastUsedAt,
			"expires_at":   s.ExpiresAt,
			"current":      s.ID == current,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *AuthHandler) RevokeSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.RevokeSession(c.Request.Context(), userID, c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) RevokeAll(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.RevokeAll(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	u, err := h.svc.GoogleAuthURL(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, u)
}

// GoogleCallback hands the browser back to the front end with a one-time code
// instead of putting tokens in the URL.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	q := url.Values{}
	if e := c.Query("error"); e != "" {
		q.Set("error", e)
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth/callback?"+q.Encode())
		return
	}

	code, err := h.svc.CompleteGoogle(c.Request.Context(), c.Query("code"), c.Query("state"), clientMeta(c))
	if err != nil {
		h.log.WithError(err).Warn("google sign-in failed")
		q.Set("error", "google_sign_in_failed")
		if utils.IsCode(err, utils.CodeInvalidArgument) {
			q.Set("error", "invalid_state")
		}
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth/callback?"+q.Encode())
		return
	}
	q.Set("auth_code", code)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth/callback?"+q.Encode())
}

func (h *AuthHandler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if !bindJSON(c, "AuthHandler.Exchange", &req) {
		return
	}
	res, err := h.svc.ExchangeAuthCode(c.Request.Context(), req.AuthCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
