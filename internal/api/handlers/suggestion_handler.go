package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/services"
)

type SuggestionHandler struct {
	svc services.SuggestionService
}

func NewSuggestionHandler(svc services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{svc: svc}
}

type summaryRequest struct {
	Language string `json:"language" binding:"max=32"`
}

func (h *SuggestionHandler) Summary(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req summaryRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, "SuggestionHandler.Summary", &req) {
		return
	}
	text, err := h.svc.SuggestSummary(c.Request.Context(), userID, c.Param("id"), req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": text})
}
