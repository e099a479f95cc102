package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/settings"
)

// SettingsHandler serves daemon preference endpoints.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the effective preference values.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bundling_enabled":     settings.BoolValue(settings.BundlingEnabledKey, settings.DefaultBundlingEnabled),
		"permission_requested": settings.BoolValue(settings.PermissionRequestedKey, settings.DefaultPermissionRequested),
		"retention_days":       settings.IntValue(settings.RetentionDaysKey, settings.DefaultRetentionDays),
		"updated_at":           settings.UpdatedAt(),
	})
}

// settingsRequest defines the request body for preference updates. Absent
// fields are left untouched.
type settingsRequest struct {
	BundlingEnabled     *bool `json:"bundling_enabled"`
	PermissionRequested *bool `json:"permission_requested"`
	RetentionDays       *int  `json:"retention_days"`
}

// Update persists changed preferences and refreshes the snapshot.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body settingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.RetentionDays != nil && *body.RetentionDays < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention_days must not be negative"})
		return
	}

	ctx := c.Request.Context()
	if body.BundlingEnabled != nil {
		if errPut := settings.Put(ctx, h.db, settings.BundlingEnabledKey, *body.BundlingEnabled); errPut != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
	}
	if body.PermissionRequested != nil {
		if errPut := settings.Put(ctx, h.db, settings.PermissionRequestedKey, *body.PermissionRequested); errPut != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
	}
	if body.RetentionDays != nil {
		if errPut := settings.Put(ctx, h.db, settings.RetentionDaysKey, *body.RetentionDays); errPut != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
	}

	h.Get(c)
}
