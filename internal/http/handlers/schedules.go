package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	log "github.com/sirupsen/logrus"

	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/store"
)

// DeliveryScheduler re-registers delivery triggers after schedule changes.
type DeliveryScheduler interface {
	ScheduleAll(ctx context.Context) error
	CancelSchedule(id uint64) error
}

// ScheduleHandler manages delivery schedule endpoints.
type ScheduleHandler struct {
	schedules *store.Schedules
	scheduler DeliveryScheduler
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(schedules *store.Schedules, scheduler DeliveryScheduler) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, scheduler: scheduler}
}

// scheduleRequest defines the request body for schedule create and update.
type scheduleRequest struct {
	Hour       int   `json:"hour"`
	Minute     int   `json:"minute"`
	DaysOfWeek []int `json:"days_of_week"`
	Enabled    *bool `json:"enabled"`
}

// scheduleResponse is the wire form of a delivery schedule.
type scheduleResponse struct {
	ID         uint64    `json:"id"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	DaysOfWeek []int     `json:"days_of_week"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toScheduleResponse(s *models.Schedule) scheduleResponse {
	days := make([]int, 0, 7)
	for _, d := range s.Weekdays() {
		days = append(days, int(d))
	}
	return scheduleResponse{
		ID:         s.ID,
		Hour:       s.Hour,
		Minute:     s.Minute,
		DaysOfWeek: days,
		Enabled:    s.Enabled,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// List returns all delivery schedules.
func (h *ScheduleHandler) List(c *gin.Context) {
	schedules, err := h.schedules.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list schedules failed"})
		return
	}
	out := make([]scheduleResponse, 0, len(schedules))
	for i := range schedules {
		out = append(out, toScheduleResponse(&schedules[i]))
	}
	c.JSON(http.StatusOK, gin.H{"schedules": out})
}

// Create stores a new schedule and re-registers triggers.
func (h *ScheduleHandler) Create(c *gin.Context) {
	schedule, ok := h.bindSchedule(c, nil)
	if !ok {
		return
	}
	if errUpsert := h.schedules.Upsert(c.Request.Context(), schedule); errUpsert != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUpsert.Error()})
		return
	}
	h.reschedule(c.Request.Context())
	c.JSON(http.StatusCreated, toScheduleResponse(schedule))
}

// Update replaces a schedule and re-registers triggers.
func (h *ScheduleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	existing, errGet := h.schedules.GetByID(c.Request.Context(), id)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load schedule failed"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	schedule, ok := h.bindSchedule(c, existing)
	if !ok {
		return
	}
	if errUpsert := h.schedules.Upsert(c.Request.Context(), schedule); errUpsert != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUpsert.Error()})
		return
	}
	h.reschedule(c.Request.Context())
	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

// SetEnabled toggles a schedule without replacing it.
func (h *ScheduleHandler) SetEnabled(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errUpdate := h.schedules.UpdateEnabled(c.Request.Context(), id, body.Enabled); errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update schedule failed"})
		return
	}
	h.reschedule(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": body.Enabled})
}

// Delete removes a schedule and cancels its trigger.
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.schedules.Delete(c.Request.Context(), id); errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete schedule failed"})
		return
	}
	if h.scheduler != nil {
		if errCancel := h.scheduler.CancelSchedule(id); errCancel != nil {
			log.WithError(errCancel).WithField("schedule_id", id).Warn("cancel trigger failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *ScheduleHandler) bindSchedule(c *gin.Context, existing *models.Schedule) (*models.Schedule, bool) {
	var body scheduleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	if body.Hour < 0 || body.Hour > 23 || body.Minute < 0 || body.Minute > 59 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hour must be 0-23 and minute 0-59"})
		return nil, false
	}
	for _, day := range body.DaysOfWeek {
		if day < 0 || day > 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days_of_week entries must be 0-6"})
			return nil, false
		}
	}

	var days datatypes.JSON
	if len(body.DaysOfWeek) > 0 {
		raw, errMarshal := json.Marshal(body.DaysOfWeek)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days_of_week"})
			return nil, false
		}
		days = datatypes.JSON(raw)
	}

	schedule := &models.Schedule{
		Hour:       body.Hour,
		Minute:     body.Minute,
		DaysOfWeek: days,
		Enabled:    true,
	}
	if body.Enabled != nil {
		schedule.Enabled = *body.Enabled
	}
	if existing != nil {
		schedule.ID = existing.ID
		schedule.CreatedAt = existing.CreatedAt
	}
	return schedule, true
}

func (h *ScheduleHandler) reschedule(ctx context.Context) {
	if h.scheduler == nil {
		return
	}
	if errSchedule := h.scheduler.ScheduleAll(ctx); errSchedule != nil {
		log.WithError(errSchedule).Warn("re-register delivery triggers failed")
	}
}
