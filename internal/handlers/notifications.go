package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"supaconnect/internal/auth"
	"supaconnect/internal/notification"
)

// GetNotifications lists the preview job notifications of the caller's
// session. ?read=false returns unread ones only.
func (h *Handlers) GetNotifications(c echo.Context) error {
	filter := &notification.NotificationFilter{
		UserID: auth.SessionFrom(c).ID,
		Type:   notification.NotificationType(c.QueryParam("type")),
		Limit:  getPageSize(c),
	}
	if raw := c.QueryParam("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "read must be a boolean")
		}
		filter.Read = &read
	}

	notifications, err := h.notifier().GetNotifications(c.Request().Context(), filter)
	if err != nil {
		slog.Error("Failed to get notifications", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to get notifications")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": notifications})
}

func (h *Handlers) MarkNotificationRead(c echo.Context) error {
	err := h.notifier().MarkAsRead(c.Request().Context(), auth.SessionFrom(c).ID, c.Param("id"))
	if errors.Is(err, notification.ErrNotificationNotFound) {
		return errorJSON(c, http.StatusNotFound, "Notification not found")
	}
	if err != nil {
		slog.Error("Failed to mark notification as read", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to mark notification as read")
	}
	return c.NoContent(http.StatusNoContent)
}
