package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/floreteng/bundld/internal/inventory"
)

// InventoryHandler serves the known app label map.
type InventoryHandler struct {
	apps *inventory.Inventory
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(apps *inventory.Inventory) *InventoryHandler {
	return &InventoryHandler{apps: apps}
}

// Labels returns every package-to-display-name mapping seen so far.
func (h *InventoryHandler) Labels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labels": h.apps.Known()})
}
