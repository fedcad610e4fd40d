package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timeclock/internal/apperr"
	"timeclock/internal/logging"
	"timeclock/internal/middleware"
	"timeclock/internal/models"
)

// render writes data as JSON.
func render(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// renderError maps err onto a status code and the error body. Unclassified
// errors are logged and hidden behind a generic message.
func (h *Handler) renderError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		_ = c.Error(err)
		logging.FromContext(c.Request.Context(), h.logger).Error("request failed",
			"path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"code":  "internal",
		})
		return
	}

	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.AbortWithStatusJSON(appErr.Kind.HTTPStatus(), body)
}

// bind decodes the JSON body into dst.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.renderError(c, apperr.Validation("invalid_body", "invalid request body"))
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be absent. Chunked
// bodies have no declared length, so emptiness is detected by decoding.
func (h *Handler) bindOptional(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.renderError(c, apperr.Validation("invalid_body", "invalid request body"))
	return false
}

func (h *Handler) paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.renderError(c, apperr.Validation("invalid_id", "invalid "+name))
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.renderError(c, apperr.Validation("invalid_limit", "limit must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

// currentUser is set by middleware.RequireAuth on every protected route.
func currentUser(c *gin.Context) models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}
