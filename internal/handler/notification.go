package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"folio/internal/apperr"
	"folio/internal/models"
	"folio/internal/repository"
)

type NotificationHandler struct {
	Repo repository.NotificationRepository
	Auth gin.HandlerFunc
}

func (h *NotificationHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/notifications", h.Auth)
	g.GET("", h.list)
	g.POST("/:id/read", h.markRead)
}

// @Summary List notifications, newest first
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Param unread query bool false "only unread"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) list(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit := repository.NormalizeLimit(intQuery(c, "limit", 50), 50)
	offset := repository.NormalizeOffset(intQuery(c, "offset", 0))
	items, err := h.Repo.ListNotifications(c.Request.Context(), repository.ListNotificationsParams{
		UserID:     uid,
		UnreadOnly: boolQueryDefault(c, "unread", false),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "list notifications", err))
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	Ok(c, items, map[string]any{"limit": limit, "offset": offset})
}

// @Summary Mark a notification read
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Param id path int true "notification id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) markRead(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	found, err := h.Repo.MarkNotificationRead(c.Request.Context(), uid, id)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "mark notification", err))
		return
	}
	if !found {
		Fail(c, apperr.E(apperr.NotFound, "notification not found"))
		return
	}
	Ok(c, gin.H{"id": id, "read": true}, nil)
}
