package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/utils"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
	Details any        `json:"details,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg := ae.Message
		if status >= http.StatusInternalServerError && ae.Code == utils.CodeInternal {
			msg = http.StatusText(status)
		}
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: msg,
			Details: ae.Details,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeOf(err),
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString("user_id"); s != "" {
		return s, true
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// bindJSON decodes the body into dst and reports binding failures with field details.
func bindJSON(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if details := validation.FieldErrors(err); len(details) > 0 {
			writeError(c, utils.ED(utils.CodeInvalidArgument, op, "invalid request body", details, err))
			return false
		}
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return false
	}
	return true
}

func clientMeta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{UserAgent: c.Request.UserAgent(), IP: c.ClientIP()}
}
