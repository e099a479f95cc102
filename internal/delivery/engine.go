// Package delivery aggregates pending captured notifications into one summary
// per source application and emits them.
package delivery

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/notify"
)

// NotificationStore is the slice of the notification repository the engine
// needs.
type NotificationStore interface {
	AppsWithPending(ctx context.Context) ([]string, error)
	PendingByApp(ctx context.Context, pkg string) ([]models.CapturedNotification, error)
	MarkDelivered(ctx context.Context, ids []uint64, at time.Time) error
}

// Inventory resolves display names for packages.
type Inventory interface {
	AppName(pkg string) string
}

// Engine delivers bundled summaries.
//
// Emission and the delivered mark are not atomic, and concurrent delivery
// runs are not locked out, so delivery is at-least-once: a summary may be
// re-emitted under the same identifier, and double-marking is harmless.
type Engine struct {
	store     NotificationStore
	emitter   notify.Emitter
	inventory Inventory
}

// NewEngine constructs a delivery engine.
func NewEngine(store NotificationStore, emitter notify.Emitter, inv Inventory) *Engine {
	return &Engine{store: store, emitter: emitter, inventory: inv}
}

// DeliverAll emits one summary per app with pending notifications and marks
// the included rows delivered. A failing group is logged and left pending for
// the next cycle; other groups still go out. Only the initial pending-apps
// listing can fail the whole call.
func (e *Engine) DeliverAll(ctx context.Context) error {
	packages, errApps := e.store.AppsWithPending(ctx)
	if errApps != nil {
		return fmt.Errorf("delivery: list pending apps: %w", errApps)
	}
	if len(packages) == 0 {
		return nil
	}

	delivered := 0
	for _, pkg := range packages {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if errGroup := e.deliverGroup(ctx, pkg); errGroup != nil {
			log.WithError(errGroup).WithField("package", pkg).
				Warn("delivery: group failed, left pending for next cycle")
			continue
		}
		delivered++
	}

	log.Infof("delivery: emitted %d/%d app groups", delivered, len(packages))
	return nil
}

// deliverGroup emits the summary for one package and marks its rows.
func (e *Engine) deliverGroup(ctx context.Context, pkg string) error {
	group, errPending := e.store.PendingByApp(ctx, pkg)
	if errPending != nil {
		return fmt.Errorf("read pending: %w", errPending)
	}
	if len(group) == 0 {
		return nil
	}

	summary := notify.BuildSummary(pkg, e.appName(pkg, group), group)
	if errNotify := e.emitter.Notify(ctx, summary); errNotify != nil {
		return fmt.Errorf("emit summary: %w", errNotify)
	}

	ids := make([]uint64, 0, len(group))
	for i := range group {
		ids = append(ids, group[i].ID)
	}
	if errMark := e.store.MarkDelivered(ctx, ids, time.Now()); errMark != nil {
		// The summary went out but the rows stay pending; the next cycle
		// re-emits under the same summary id, which replaces rather than
		// duplicates.
		return fmt.Errorf("mark delivered: %w", errMark)
	}
	return nil
}

// MarkRead marks every pending notification for the package delivered and
// dismisses its summary. This backs the summary's "mark as read" action.
func (e *Engine) MarkRead(ctx context.Context, pkg string) error {
	group, errPending := e.store.PendingByApp(ctx, pkg)
	if errPending != nil {
		return fmt.Errorf("delivery: read pending: %w", errPending)
	}
	if len(group) > 0 {
		ids := make([]uint64, 0, len(group))
		for i := range group {
			ids = append(ids, group[i].ID)
		}
		if errMark := e.store.MarkDelivered(ctx, ids, time.Now()); errMark != nil {
			return fmt.Errorf("delivery: mark read: %w", errMark)
		}
	}
	if errCancel := e.emitter.Cancel(ctx, notify.SummaryID(pkg)); errCancel != nil {
		log.WithError(errCancel).WithField("package", pkg).
			Warn("delivery: summary dismissal failed")
	}
	return nil
}

// Refresh re-emits the summary for one package with its current pending set,
// or dismisses it when nothing is pending. Used after history edits.
func (e *Engine) Refresh(ctx context.Context, pkg string) error {
	group, errPending := e.store.PendingByApp(ctx, pkg)
	if errPending != nil {
		return fmt.Errorf("delivery: read pending: %w", errPending)
	}
	if len(group) == 0 {
		return e.emitter.Cancel(ctx, notify.SummaryID(pkg))
	}
	return e.emitter.Notify(ctx, notify.BuildSummary(pkg, e.appName(pkg, group), group))
}

func (e *Engine) appName(pkg string, group []models.CapturedNotification) string {
	if len(group) > 0 && group[0].AppName != "" {
		return group[0].AppName
	}
	if e.inventory != nil {
		return e.inventory.AppName(pkg)
	}
	return pkg
}
