package handler

import (
	"net/http"

	"mandi/internal/delivery/http/response"
	"mandi/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// NotificationHandler serves the active proximity notifications and their
// dismissal.
type NotificationHandler struct {
	notifications usecase.NotificationUsecase
	tracker       usecase.TrackingUsecase
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications usecase.NotificationUsecase, tracker usecase.TrackingUsecase) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		tracker:       tracker,
	}
}

// GetNotifications returns the unacknowledged events, newest first.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	return response.Success(c, http.StatusOK, h.notifications.Active())
}

// DismissNotification acknowledges one event by id.
func (h *NotificationHandler) DismissNotification(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_NOTIFICATION_ID", "id must be a UUID")
	}

	if err := h.notifications.Dismiss(id); err != nil {
		return response.NotFound(c, "NOTIFICATION_NOT_FOUND", "no active notification with this id")
	}

	return response.Success(c, http.StatusOK, map[string]string{"dismissed": id.String()})
}

// ShareOrderLocation publishes the session's current location for an order.
func (h *NotificationHandler) ShareOrderLocation(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return response.BadRequest(c, "INVALID_ORDER_ID", "order id is required")
	}

	if !h.tracker.ShareLocationForOrder(c.Request().Context(), orderID) {
		return response.Error(c, http.StatusBadGateway, "SHARE_FAILED", "no location available or the backend rejected it")
	}

	return response.Success(c, http.StatusOK, map[string]string{"order_id": orderID})
}
