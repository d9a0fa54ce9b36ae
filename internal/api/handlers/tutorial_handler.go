package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/services"
)

type TutorialHandler struct {
	svc services.TutorialService
}

func NewTutorialHandler(svc services.TutorialService) *TutorialHandler {
	return &TutorialHandler{svc: svc}
}

func (h *TutorialHandler) run(c *gin.Context, fn func(ctx context.Context, userID string) (*services.TutorialState, error)) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	st, err := fn(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *TutorialHandler) State(c *gin.Context)    { h.run(c, h.svc.State) }
func (h *TutorialHandler) Next(c *gin.Context)     { h.run(c, h.svc.Next) }
func (h *TutorialHandler) Back(c *gin.Context)     { h.run(c, h.svc.Back) }
func (h *TutorialHandler) Skip(c *gin.Context)     { h.run(c, h.svc.Skip) }
func (h *TutorialHandler) Complete(c *gin.Context) { h.run(c, h.svc.Complete) }
func (h *TutorialHandler) Reset(c *gin.Context)    { h.run(c, h.svc.Reset) }
