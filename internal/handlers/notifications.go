package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timeclock/internal/apperr"
	"timeclock/internal/notifications"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	limit, ok := h.queryLimit(c)
	if !ok {
		return
	}
	f := notifications.ListFilter{Limit: limit}
	if raw := c.Query("is_read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			h.renderError(c, apperr.Validation("invalid_is_read", "is_read must be true or false"))
			return
		}
		f.IsRead = &read
	}
	list, err := h.notifications.List(c.Request.Context(), currentUser(c).ID, f)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newNotificationViews(h.clock, list))
}

func (h *Handler) UnreadNotificationCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"count": n})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"message": "Notification deleted"})
}

func (h *Handler) ClearReadNotifications(c *gin.Context) {
	n, err := h.notifications.ClearRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"message": "Read notifications cleared", "deleted": n})
}
