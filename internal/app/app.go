// Package app assembles the bundling daemon from its components.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/capture"
	"github.com/floreteng/bundld/internal/config"
	"github.com/floreteng/bundld/internal/db"
	"github.com/floreteng/bundld/internal/delivery"
	relayhttp "github.com/floreteng/bundld/internal/http"
	"github.com/floreteng/bundld/internal/inventory"
	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/notify"
	"github.com/floreteng/bundld/internal/retention"
	"github.com/floreteng/bundld/internal/rules"
	"github.com/floreteng/bundld/internal/scheduler"
	"github.com/floreteng/bundld/internal/security"
	"github.com/floreteng/bundld/internal/settings"
	"github.com/floreteng/bundld/internal/store"
)

// bridgeCanceler acknowledges suppress verdicts without acting on them. The
// listener bridge dismisses the original notification itself based on the
// verdict returned from the ingest endpoint.
type bridgeCanceler struct{}

func (bridgeCanceler) Cancel(_ context.Context, key string) error {
	log.WithField("key", key).Debug("suppress verdict issued, bridge cancels original")
	return nil
}

// loadConfig resolves, loads, and validates the configuration file.
func loadConfig(appCfg config.AppConfig) (*config.Config, error) {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, appCfg config.AppConfig) error {
	cfg, err := loadConfig(appCfg)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// CreateAdmin creates or updates a management API account.
func CreateAdmin(ctx context.Context, appCfg config.AppConfig, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("app: username is required")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("app: password is required")
	}

	cfg, err := loadConfig(appCfg)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("app: hash password: %w", errHash)
	}

	var existing models.Admin
	errFind := conn.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	switch {
	case errFind == nil:
		existing.Password = hash
		existing.Active = true
		if errSave := conn.WithContext(ctx).Save(&existing).Error; errSave != nil {
			return fmt.Errorf("app: update admin: %w", errSave)
		}
		log.Infof("admin %q password updated", username)
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		admin := models.Admin{Username: username, Password: hash, Active: true}
		if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
			return fmt.Errorf("app: create admin: %w", errCreate)
		}
		log.Infof("admin %q created", username)
	default:
		return fmt.Errorf("app: lookup admin: %w", errFind)
	}
	return nil
}

// DeliverNow runs one bundled delivery pass and exits.
func DeliverNow(ctx context.Context, appCfg config.AppConfig) error {
	cfg, err := loadConfig(appCfg)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	apps := inventory.New(cfg.AppLabels)
	engine := delivery.NewEngine(store.NewNotifications(conn), buildEmitter(cfg), apps)
	return engine.DeliverAll(ctx)
}

// buildEmitter selects the summary emitter from configuration.
func buildEmitter(cfg *config.Config) notify.Emitter {
	if cfg.Webhook.URL != "" {
		return notify.NewWebhookEmitter(cfg.Webhook.URL)
	}
	return notify.LogEmitter{}
}

// RunServer boots the daemon: capture pipeline, delivery triggers, retention
// cleanup, and the HTTP surface. It blocks until ctx is cancelled.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	cfg, err := loadConfig(appCfg)
	if err != nil {
		return err
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return errValidate
	}
	if errLog := config.SetupLogging(cfg.Log); errLog != nil {
		return errLog
	}

	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		return fmt.Errorf("app: load settings: %w", errRefresh)
	}

	apps := inventory.New(cfg.AppLabels)
	notifications := store.NewNotifications(conn)
	evaluator := rules.NewEvaluator(store.NewExemptions(conn), store.NewAppRules(conn))
	listener := capture.NewListener(evaluator, notifications, bridgeCanceler{}, apps)

	emitter := buildEmitter(cfg)
	engine := delivery.NewEngine(notifications, emitter, apps)

	sched := scheduler.NewScheduler(store.NewSchedules(conn), nil, engine)
	registry := scheduler.NewTimerRegistry(sched.HandleTrigger)
	sched.SetRegistry(registry)

	listener.Start(ctx)
	registry.Start(ctx)
	if errSchedule := sched.ScheduleAll(ctx); errSchedule != nil {
		log.WithError(errSchedule).Warn("register delivery triggers failed at startup")
	}
	retention.NewCleaner(notifications).Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := relayhttp.NewRouter(relayhttp.RouterDeps{
		DB:          conn,
		Listener:    listener,
		Apps:        apps,
		Deliverer:   engine,
		Scheduler:   sched,
		JWTSecret:   cfg.Auth.JWTSecret,
		JWTExpiry:   cfg.Auth.JWTExpiry,
		IngestToken: cfg.Server.IngestToken,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("bundld listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("http shutdown failed")
		}
		listener.Wait()
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
