package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/store"
)

// AppRuleHandler manages per-package bundling rules.
type AppRuleHandler struct {
	rules *store.AppRules
}

// NewAppRuleHandler constructs an AppRuleHandler.
func NewAppRuleHandler(rules *store.AppRules) *AppRuleHandler {
	return &AppRuleHandler{rules: rules}
}

// appRuleRequest defines the request body for rule create and update.
type appRuleRequest struct {
	PackageName  string  `json:"package_name"`
	Mode         string  `json:"mode"`
	FilterString *string `json:"filter_string"`
}

// appRuleResponse is the wire form of an app rule.
type appRuleResponse struct {
	ID           uint64    `json:"id"`
	PackageName  string    `json:"package_name"`
	Mode         string    `json:"mode"`
	FilterString *string   `json:"filter_string,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAppRuleResponse(rule *models.AppRule) appRuleResponse {
	return appRuleResponse{
		ID:           rule.ID,
		PackageName:  rule.PackageName,
		Mode:         rule.Mode.String(),
		FilterString: rule.FilterString,
		CreatedAt:    rule.CreatedAt,
		UpdatedAt:    rule.UpdatedAt,
	}
}

// List returns all app rules in evaluation order.
func (h *AppRuleHandler) List(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rules failed"})
		return
	}
	out := make([]appRuleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, toAppRuleResponse(&rules[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// Create validates and stores a new app rule.
func (h *AppRuleHandler) Create(c *gin.Context) {
	rule, ok := h.bindRule(c, 0)
	if !ok {
		return
	}
	if errUpsert := h.rules.Upsert(c.Request.Context(), rule); errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save rule failed"})
		return
	}
	c.JSON(http.StatusCreated, toAppRuleResponse(rule))
}

// Update replaces an existing app rule.
func (h *AppRuleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	existing, errGet := h.rules.GetByID(c.Request.Context(), id)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load rule failed"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	rule, ok := h.bindRule(c, id)
	if !ok {
		return
	}
	rule.CreatedAt = existing.CreatedAt
	if errUpsert := h.rules.Upsert(c.Request.Context(), rule); errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save rule failed"})
		return
	}
	c.JSON(http.StatusOK, toAppRuleResponse(rule))
}

// Delete removes an app rule.
func (h *AppRuleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.rules.Delete(c.Request.Context(), id); errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete rule failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *AppRuleHandler) bindRule(c *gin.Context, id uint64) (*models.AppRule, bool) {
	var body appRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	pkg := strings.TrimSpace(body.PackageName)
	if pkg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing package_name"})
		return nil, false
	}
	mode, ok := models.ParseRuleMode(strings.TrimSpace(body.Mode))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be whitelist or blacklist"})
		return nil, false
	}
	return &models.AppRule{
		ID:           id,
		PackageName:  pkg,
		Mode:         mode,
		FilterString: body.FilterString,
	}, true
}

// parseIDParam reads the :id path parameter.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
