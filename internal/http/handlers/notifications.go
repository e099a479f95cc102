package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/store"
)

const defaultHistoryLimit = 200

// Deliverer triggers summary delivery outside the scheduled windows.
type Deliverer interface {
	DeliverAll(ctx context.Context) error
	MarkRead(ctx context.Context, pkg string) error
	Refresh(ctx context.Context, pkg string) error
}

// NotificationHandler serves the captured notification history.
type NotificationHandler struct {
	notifications *store.Notifications
	deliverer     Deliverer
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications *store.Notifications, deliverer Deliverer) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, deliverer: deliverer}
}

// notificationResponse is the wire form of a captured notification.
type notificationResponse struct {
	ID            uint64     `json:"id"`
	Key           string     `json:"key"`
	Tag           string     `json:"tag,omitempty"`
	SourcePackage string     `json:"source_package"`
	AppName       string     `json:"app_name"`
	Title         string     `json:"title"`
	Text          string     `json:"text"`
	SubText       string     `json:"sub_text,omitempty"`
	Category      string     `json:"category,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	IsDelivered   bool       `json:"is_delivered"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

func toNotificationResponse(n *models.CapturedNotification) notificationResponse {
	resp := notificationResponse{
		ID:            n.ID,
		Key:           n.Key,
		Tag:           n.Tag,
		SourcePackage: n.SourcePackage,
		AppName:       n.AppName,
		Title:         n.TitleOrEmpty(),
		Text:          n.TextOrEmpty(),
		Timestamp:     n.Timestamp,
		IsDelivered:   n.IsDelivered,
		DeliveredAt:   n.DeliveredAt,
	}
	if n.SubText != nil {
		resp.SubText = *n.SubText
	}
	if n.Category != nil {
		resp.Category = *n.Category
	}
	return resp
}

// List returns captured notifications, newest first. Supports pending-only,
// per-package, and text search filters.
func (h *NotificationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseLimitQuery(c, defaultHistoryLimit)

	var (
		rows []models.CapturedNotification
		err  error
	)
	switch {
	case strings.TrimSpace(c.Query("q")) != "":
		rows, err = h.notifications.Search(ctx, strings.TrimSpace(c.Query("q")), limit)
	case strings.TrimSpace(c.Query("package")) != "":
		rows, err = h.notifications.ByApp(ctx, strings.TrimSpace(c.Query("package")), limit)
	case c.Query("pending") == "true":
		rows, err = h.notifications.Pending(ctx)
	default:
		rows, err = h.notifications.All(ctx, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list notifications failed"})
		return
	}
	out := make([]notificationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toNotificationResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// Apps returns the packages that currently hold pending notifications.
func (h *NotificationHandler) Apps(c *gin.Context) {
	ctx := c.Request.Context()
	packages, err := h.notifications.AppsWithPending(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list apps failed"})
		return
	}
	type appGroup struct {
		Package string `json:"package"`
		Pending int64  `json:"pending"`
	}
	out := make([]appGroup, 0, len(packages))
	for _, pkg := range packages {
		count, errCount := h.notifications.PendingCountByApp(ctx, pkg)
		if errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count pending failed"})
			return
		}
		out = append(out, appGroup{Package: pkg, Pending: count})
	}
	c.JSON(http.StatusOK, gin.H{"apps": out})
}

// Delete removes a single captured notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.notifications.Delete(c.Request.Context(), id); errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete notification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Clear wipes the entire notification history.
func (h *NotificationHandler) Clear(c *gin.Context) {
	if errClear := h.notifications.DeleteAll(c.Request.Context()); errClear != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear notifications failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// DeliverNow forces an immediate bundled delivery of all pending groups.
func (h *NotificationHandler) DeliverNow(c *gin.Context) {
	if h.deliverer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delivery unavailable"})
		return
	}
	if errDeliver := h.deliverer.DeliverAll(c.Request.Context()); errDeliver != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": true})
}

// MarkRead marks an app's pending notifications as handled and cancels its
// posted summary.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	pkg := strings.TrimSpace(c.Param("package"))
	if pkg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing package"})
		return
	}
	if h.deliverer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delivery unavailable"})
		return
	}
	if errMark := h.deliverer.MarkRead(c.Request.Context(), pkg); errMark != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mark read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": pkg, "read": true})
}

// Refresh re-emits or withdraws an app's summary to match the pending set.
func (h *NotificationHandler) Refresh(c *gin.Context) {
	pkg := strings.TrimSpace(c.Param("package"))
	if pkg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing package"})
		return
	}
	if h.deliverer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delivery unavailable"})
		return
	}
	if errRefresh := h.deliverer.Refresh(c.Request.Context(), pkg); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": pkg, "refreshed": true})
}

// parseLimitQuery reads the limit query parameter with a fallback.
func parseLimitQuery(c *gin.Context, def int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def
	}
	limit, errParse := strconv.Atoi(raw)
	if errParse != nil || limit <= 0 {
		return def
	}
	return limit
}
