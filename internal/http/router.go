// Package http wires the ingest and admin APIs onto a gin engine.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/capture"
	"github.com/floreteng/bundld/internal/http/handlers"
	"github.com/floreteng/bundld/internal/inventory"
	"github.com/floreteng/bundld/internal/store"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	DB        *gorm.DB
	Listener  *capture.Listener
	Apps      *inventory.Inventory
	Deliverer handlers.Deliverer
	Scheduler handlers.DeliveryScheduler

	JWTSecret string
	JWTExpiry time.Duration
	// IngestToken guards the ingest endpoint when set.
	IngestToken string
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	ingest := r.Group("/v0/ingest")
	if deps.IngestToken != "" {
		ingest.Use(bearerTokenMiddleware(deps.IngestToken))
	}
	ingestHandler := handlers.NewIngestHandler(deps.Listener, deps.Apps)
	ingest.POST("/events", ingestHandler.Post)

	admin := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWTSecret, deps.JWTExpiry)
	admin.POST("/auth/login", authHandler.Login)

	authed := admin.Group("")
	authed.Use(adminAuthMiddleware(deps.DB, deps.JWTSecret))

	ruleHandler := handlers.NewAppRuleHandler(store.NewAppRules(deps.DB))
	authed.GET("/app-rules", ruleHandler.List)
	authed.POST("/app-rules", ruleHandler.Create)
	authed.PUT("/app-rules/:id", ruleHandler.Update)
	authed.DELETE("/app-rules/:id", ruleHandler.Delete)

	exemptionHandler := handlers.NewExemptionHandler(store.NewExemptions(deps.DB))
	authed.GET("/exemptions", exemptionHandler.List)
	authed.POST("/exemptions", exemptionHandler.Create)
	authed.PUT("/exemptions/:id", exemptionHandler.Update)
	authed.DELETE("/exemptions/:id", exemptionHandler.Delete)

	scheduleHandler := handlers.NewScheduleHandler(store.NewSchedules(deps.DB), deps.Scheduler)
	authed.GET("/schedules", scheduleHandler.List)
	authed.POST("/schedules", scheduleHandler.Create)
	authed.PUT("/schedules/:id", scheduleHandler.Update)
	authed.PUT("/schedules/:id/enabled", scheduleHandler.SetEnabled)
	authed.DELETE("/schedules/:id", scheduleHandler.Delete)

	notificationHandler := handlers.NewNotificationHandler(store.NewNotifications(deps.DB), deps.Deliverer)
	authed.GET("/notifications", notificationHandler.List)
	authed.GET("/notifications/apps", notificationHandler.Apps)
	authed.DELETE("/notifications/:id", notificationHandler.Delete)
	authed.DELETE("/notifications", notificationHandler.Clear)
	authed.POST("/deliver", notificationHandler.DeliverNow)
	authed.POST("/apps/:package/mark-read", notificationHandler.MarkRead)
	authed.POST("/apps/:package/refresh", notificationHandler.Refresh)

	inventoryHandler := handlers.NewInventoryHandler(deps.Apps)
	authed.GET("/apps/labels", inventoryHandler.Labels)

	settingsHandler := handlers.NewSettingsHandler(deps.DB)
	authed.GET("/settings", settingsHandler.Get)
	authed.PUT("/settings", settingsHandler.Update)

	return r
}
