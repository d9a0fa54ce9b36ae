package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/services"
)

type AccountHandler struct {
	svc services.UserService
}

func NewAccountHandler(svc services.UserService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type updateAccountRequest struct {
	Name string `json:"name" binding:"max=120"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (h *AccountHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	u, err := h.svc.Me(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "has_password": u.HasPassword()})
}

func (h *AccountHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req updateAccountRequest
	if !bindJSON(c, "AccountHandler.Update", &req) {
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), userID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AccountHandler) ChangePassword(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindJSON(c, "AccountHandler.ChangePassword", &req) {
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req deleteAccountRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, "AccountHandler.Delete", &req) {
		return
	}
	if err := h.svc.DeleteAccount(c.Request.Context(), userID, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
