package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/floreteng/bundld/internal/capture"
	"github.com/floreteng/bundld/internal/inventory"
)

// IngestHandler accepts notification events from the listener bridge.
type IngestHandler struct {
	listener *capture.Listener
	apps     *inventory.Inventory
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(listener *capture.Listener, apps *inventory.Inventory) *IngestHandler {
	return &IngestHandler{listener: listener, apps: apps}
}

// Post evaluates one notification event and returns the verdict. The bridge
// acts on "suppress" by cancelling the original notification on its side.
func (h *IngestHandler) Post(c *gin.Context) {
	var ev capture.Event
	if errBind := c.ShouldBindJSON(&ev); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(ev.PackageName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing package_name"})
		return
	}
	if ev.PostTime.IsZero() {
		ev.PostTime = time.Now().UTC()
	}
	if h.apps != nil {
		h.apps.Observe(ev.PackageName, ev.AppName)
	}

	res := h.listener.Submit(c.Request.Context(), ev)
	c.JSON(http.StatusOK, gin.H{
		"decision": res.Decision.String(),
		"captured": res.Captured,
		"key":      ev.Key,
	})
}
