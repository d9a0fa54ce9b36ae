package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/render"
	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

const maxImportBytes = 2 << 20

type CVHandler struct {
	svc services.CVService
}

func NewCVHandler(svc services.CVService) *CVHandler {
	return &CVHandler{svc: svc}
}

type nameRequest struct {
	Name string `json:"name" binding:"max=120"`
}

type applyRequest struct {
	Actions []cvstate.Action `json:"actions" binding:"required,min=1,max=200,dive"`
}

func (h *CVHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cvs": list})
}

func (h *CVHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req nameRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, "CVHandler.Create", &req) {
		return
	}
	cv, err := h.svc.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cv)
}

func (h *CVHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	cv, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}

func (h *CVHandler) Rename(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req nameRequest
	if !bindJSON(c, "CVHandler.Rename", &req) {
		return
	}
	cv, err := h.svc.Rename(c.Request.Context(), userID, c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}

func (h *CVHandler) Duplicate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req nameRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, "CVHandler.Duplicate", &req) {
		return
	}
	cv, err := h.svc.Duplicate(c.Request.Context(), userID, c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cv)
}

func (h *CVHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Apply runs a batch of reducer actions; the batch succeeds or fails as a whole.
func (h *CVHandler) Apply(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req applyRequest
	if !bindJSON(c, "CVHandler.Apply", &req) {
		return
	}
	res, err := h.svc.Apply(c.Request.Context(), userID, c.Param("id"), req.Actions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CVHandler) Import(c *gin.Context) {
	const op = "CVHandler.Import"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read body", err))
		return
	}
	if len(raw) > maxImportBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "document too large (max 2MB)", nil))
		return
	}
	cv, err := h.svc.Import(c.Request.Context(), userID, raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cv)
}

func (h *CVHandler) ExportJSON(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	doc, err := h.svc.ExportJSON(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	name := render.FileName(doc.CV)
	name = name[:len(name)-len(".pdf")] + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.JSON(http.StatusOK, doc)
}
