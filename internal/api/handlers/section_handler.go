package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

// SectionHandler exposes each child collection as a REST resource. Every call
// is one reducer action applied through the CV service.
type SectionHandler struct {
	svc services.CVService
}

func NewSectionHandler(svc services.CVService) *SectionHandler {
	return &SectionHandler{svc: svc}
}

type orderRequest struct {
	Order []string `json:"order" binding:"required"`
}

type selectAllRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

func (h *SectionHandler) section(c *gin.Context, op string) (models.Section, bool) {
	s := models.Section(c.Param("section"))
	if !s.Valid() {
		writeError(c, utils.E(utils.CodeNotFound, op, "unknown section", nil))
		return "", false
	}
	return s, true
}

func (h *SectionHandler) apply(c *gin.Context, status int, a cvstate.Action) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.svc.Apply(c.Request.Context(), userID, c.Param("id"), []cvstate.Action{a})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, res)
}

func (h *SectionHandler) readPayload(c *gin.Context, op string) (json.RawMessage, bool) {
	raw, err := c.GetRawData()
	if err != nil || !json.Valid(raw) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return nil, false
	}
	return json.RawMessage(raw), true
}

func (h *SectionHandler) Add(c *gin.Context) {
	const op = "SectionHandler.Add"
	sec, ok := h.section(c, op)
	if !ok {
		return
	}
	payload, ok := h.readPayload(c, op)
	if !ok {
		return
	}
	h.apply(c, http.StatusCreated, cvstate.Action{Type: cvstate.ActionAddItem, Section: sec, Payload: payload})
}

func (h *SectionHandler) Update(c *gin.Context) {
	const op = "SectionHandler.Update"
	sec, ok := h.section(c, op)
	if !ok {
		return
	}
	payload, ok := h.readPayload(c, op)
	if !ok {
		return
	}
	h.apply(c, http.StatusOK, cvstate.Action{Type: cvstate.ActionUpdateItem, Section: sec, ItemID: c.Param("item_id"), Payload: payload})
}

func (h *SectionHandler) Remove(c *gin.Context) {
	sec, ok := h.section(c, "SectionHandler.Remove")
	if !ok {
		return
	}
	h.apply(c, http.StatusOK, cvstate.Action{Type: cvstate.ActionRemoveItem, Section: sec, ItemID: c.Param("item_id")})
}

func (h *SectionHandler) Toggle(c *gin.Context) {
	sec, ok := h.section(c, "SectionHandler.Toggle")
	if !ok {
		return
	}
	h.apply(c, http.StatusOK, cvstate.Action{Type: cvstate.ActionToggleSelected, Section: sec, ItemID: c.Param("item_id")})
}

func (h *SectionHandler) Reorder(c *gin.Context) {
	const op = "SectionHandler.Reorder"
	sec, ok := h.section(c, op)
	if !ok {
		return
	}
	var req orderRequest
	if !bindJSON(c, op, &req) {
		return
	}
	h.apply(c, http.StatusOK, cvstate.Action{Type: cvstate.ActionReorder, Section: sec, Order: req.Order})
}

func (h *SectionHandler) SelectAll(c *gin.Context) {
	const op = "SectionHandler.SelectAll"
	sec, ok := h.section(c, op)
	if !ok {
		return
	}
	var req selectAllRequest
	if !bindJSON(c, op, &req) {
		return
	}
	h.apply(c, http.StatusOK, cvstate.Action{Type: cvstate.ActionSelectAll, Section: sec, Selected: req.Selected})
}
