package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/store"
)

// ExemptionHandler manages exemption rule endpoints.
type ExemptionHandler struct {
	exemptions *store.Exemptions
}

// NewExemptionHandler constructs an ExemptionHandler.
func NewExemptionHandler(exemptions *store.Exemptions) *ExemptionHandler {
	return &ExemptionHandler{exemptions: exemptions}
}

// exemptionRequest defines the request body for exemption create and update.
type exemptionRequest struct {
	AppPackage     string   `json:"app_package"`
	RuleType       string   `json:"rule_type"`
	Keywords       []string `json:"keywords"`
	CategoryFilter *string  `json:"category_filter"`
	IsEnabled      *bool    `json:"is_enabled"`
}

// exemptionResponse is the wire form of an exemption rule.
type exemptionResponse struct {
	ID             uint64    `json:"id"`
	AppPackage     string    `json:"app_package"`
	RuleType       string    `json:"rule_type"`
	Keywords       []string  `json:"keywords"`
	CategoryFilter *string   `json:"category_filter,omitempty"`
	IsEnabled      bool      `json:"is_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toExemptionResponse(rule *models.ExemptionRule) exemptionResponse {
	keywords := rule.KeywordList()
	if keywords == nil {
		keywords = []string{}
	}
	return exemptionResponse{
		ID:             rule.ID,
		AppPackage:     rule.AppPackage,
		RuleType:       rule.RuleType,
		Keywords:       keywords,
		CategoryFilter: rule.CategoryFilter,
		IsEnabled:      rule.IsEnabled,
		CreatedAt:      rule.CreatedAt,
		UpdatedAt:      rule.UpdatedAt,
	}
}

// List returns all exemption rules, optionally filtered by app package.
func (h *ExemptionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		rules []models.ExemptionRule
		err   error
	)
	if pkg := strings.TrimSpace(c.Query("app_package")); pkg != "" {
		rules, err = h.exemptions.ForApp(ctx, pkg)
	} else {
		rules, err = h.exemptions.List(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list exemptions failed"})
		return
	}
	out := make([]exemptionResponse, 0, len(rules))
	for i := range rules {
		out = append(out, toExemptionResponse(&rules[i]))
	}
	c.JSON(http.StatusOK, gin.H{"exemptions": out})
}

// Create validates and stores a new exemption rule.
func (h *ExemptionHandler) Create(c *gin.Context) {
	rule, ok := h.bindRule(c, nil)
	if !ok {
		return
	}
	if errInsert := h.exemptions.Insert(c.Request.Context(), rule); errInsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save exemption failed"})
		return
	}
	c.JSON(http.StatusCreated, toExemptionResponse(rule))
}

// Update replaces an existing exemption rule.
func (h *ExemptionHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	existing, errGet := h.exemptions.GetByID(c.Request.Context(), id)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load exemption failed"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exemption not found"})
		return
	}
	rule, ok := h.bindRule(c, existing)
	if !ok {
		return
	}
	if errUpdate := h.exemptions.Update(c.Request.Context(), rule); errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save exemption failed"})
		return
	}
	c.JSON(http.StatusOK, toExemptionResponse(rule))
}

// Delete removes an exemption rule.
func (h *ExemptionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.exemptions.Delete(c.Request.Context(), id); errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete exemption failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *ExemptionHandler) bindRule(c *gin.Context, existing *models.ExemptionRule) (*models.ExemptionRule, bool) {
	var body exemptionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	pkg := strings.TrimSpace(body.AppPackage)
	if pkg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing app_package"})
		return nil, false
	}
	ruleType := strings.ToUpper(strings.TrimSpace(body.RuleType))
	if ruleType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing rule_type"})
		return nil, false
	}

	var keywords datatypes.JSON
	if len(body.Keywords) > 0 {
		raw, errMarshal := json.Marshal(body.Keywords)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid keywords"})
			return nil, false
		}
		keywords = datatypes.JSON(raw)
	}

	rule := &models.ExemptionRule{
		AppPackage:     pkg,
		RuleType:       ruleType,
		Keywords:       keywords,
		CategoryFilter: body.CategoryFilter,
		IsEnabled:      true,
	}
	if body.IsEnabled != nil {
		rule.IsEnabled = *body.IsEnabled
	}
	if existing != nil {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
	}
	return rule, true
}
