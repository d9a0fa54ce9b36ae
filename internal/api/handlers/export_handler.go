package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/storage"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

const FallbackHeader = "X-Export-Fallback"

type ExportHandler struct {
	svc   services.ExportService
	local *storage.LocalStore // nil unless exports are kept on disk
}

func NewExportHandler(svc services.ExportService, local *storage.LocalStore) *ExportHandler {
	return &ExportHandler{svc: svc, local: local}
}

func optionsFromQuery(c *gin.Context) models.ExportOptions {
	return models.ExportOptions{PaperSize: c.Query("paper"), Template: c.Query("template")}
}

func (h *ExportHandler) Preview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, err := h.svc.Preview(c.Request.Context(), userID, c.Param("id"), optionsFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, services.ContentTypeHTML, page)
}

// PDF streams the rendered file. When no PDF could be produced the print-ready
// page is returned instead and flagged with X-Export-Fallback: print.
func (h *ExportHandler) PDF(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	out, err := h.svc.RenderPDF(c.Request.Context(), userID, c.Param("id"), optionsFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if out.Fallback {
		c.Header(FallbackHeader, "print")
		c.Data(http.StatusOK, out.ContentType, out.Data)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.FileName+`"`)
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

func (h *ExportHandler) Enqueue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var opts models.ExportOptions
	if c.Request.ContentLength != 0 && !bindJSON(c, "ExportHandler.Enqueue", &opts) {
		return
	}
	e, err := h.svc.Enqueue(c.Request.Context(), userID, c.Param("id"), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, e)
}

func (h *ExportHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": list})
}

func (h *ExportHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), userID, c.Param("export_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *ExportHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	events, err := h.svc.Events(c.Request.Context(), userID, c.Param("export_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// File serves a locally stored export behind a signed link. The signature is
// the authorisation, so the route sits outside the JWT group.
func (h *ExportHandler) File(c *gin.Context) {
	const op = "ExportHandler.File"

	if h.local == nil {
		writeError(c, utils.E(utils.CodeNotFound, op, "not found", nil))
		return
	}
	object := c.Param("object")
	if len(object) > 0 && object[0] == '/' {
		object = object[1:]
	}
	name := c.Query("name")
	p, err := h.local.Open(object, name, c.Query("expires"), c.Query("sig"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(c, utils.E(utils.CodeNotFound, op, "file not found", err))
			return
		}
		writeError(c, utils.E(utils.CodeForbidden, op, err.Error(), err))
		return
	}
	if name == "" {
		name = "CV.pdf"
	}
	c.FileAttachment(p, name)
}
