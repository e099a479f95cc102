// Package scheduler turns enabled delivery schedules into registered
// recurring triggers and handles trigger firings.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/floreteng/bundld/internal/models"
)

const (
	// GroupTag marks every trigger owned by this subsystem.
	GroupTag = "bundle_delivery"
	// triggerTagPrefix prefixes each schedule's stable trigger tag.
	triggerTagPrefix = "bundle_delivery_"
	// period is the trigger repeat interval.
	period = 24 * time.Hour
)

// TriggerTag derives the stable trigger tag for a schedule id, so
// re-registration replaces rather than duplicates.
func TriggerTag(id uint64) string {
	return triggerTagPrefix + strconv.FormatUint(id, 10)
}

// scheduleIDFromTag reverses TriggerTag.
func scheduleIDFromTag(tag string) (uint64, bool) {
	raw, ok := strings.CutPrefix(tag, triggerTagPrefix)
	if !ok {
		return 0, false
	}
	id, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil {
		return 0, false
	}
	return id, true
}

// TriggerRegistry is the recurring-trigger facility boundary. Registering an
// existing tag replaces its trigger.
type TriggerRegistry interface {
	RegisterPeriodic(group, tag string, firstFire time.Time, every time.Duration) error
	Cancel(tag string) error
	CancelGroup(group string) error
}

// ScheduleSource is the slice of the schedule repository the scheduler needs.
type ScheduleSource interface {
	Enabled(ctx context.Context) ([]models.Schedule, error)
	GetByID(ctx context.Context, id uint64) (*models.Schedule, error)
}

// Deliverer runs a bundled delivery cycle.
type Deliverer interface {
	DeliverAll(ctx context.Context) error
}

// Scheduler reconciles the registered trigger set with the enabled schedules.
type Scheduler struct {
	schedules ScheduleSource
	registry  TriggerRegistry
	deliverer Deliverer
	now       func() time.Time
}

// NewScheduler constructs a Scheduler.
func NewScheduler(schedules ScheduleSource, registry TriggerRegistry, deliverer Deliverer) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		registry:  registry,
		deliverer: deliverer,
		now:       time.Now,
	}
}

// SetRegistry binds the trigger registry after construction. The registry's
// fire callback is usually this scheduler's HandleTrigger, so one of the two
// has to be wired late.
func (s *Scheduler) SetRegistry(registry TriggerRegistry) {
	s.registry = registry
}

// ScheduleAll recomputes the full desired trigger set from the enabled
// schedules and re-registers it. Safe to call after every edit and at boot:
// the previous set is cancelled wholesale first, so repeated calls never
// accumulate triggers.
//
// Registration is best-effort. A schedule whose trigger fails to register
// simply does not fire until the next ScheduleAll call; the callers that
// re-derive the set (boot, schedule edits) are the retry path.
func (s *Scheduler) ScheduleAll(ctx context.Context) error {
	if errCancel := s.registry.CancelGroup(GroupTag); errCancel != nil {
		log.WithError(errCancel).Warn("scheduler: cancel previous triggers failed")
	}

	enabled, errEnabled := s.schedules.Enabled(ctx)
	if errEnabled != nil {
		return fmt.Errorf("scheduler: read enabled schedules: %w", errEnabled)
	}

	registered := 0
	for i := range enabled {
		schedule := &enabled[i]
		first := NextFire(s.now(), schedule.Hour, schedule.Minute)
		tag := TriggerTag(schedule.ID)
		if errRegister := s.registry.RegisterPeriodic(GroupTag, tag, first, period); errRegister != nil {
			log.WithError(errRegister).WithField("schedule", schedule.ID).
				Warn("scheduler: trigger registration failed")
			continue
		}
		registered++
		log.Infof("scheduler: %s registered for %02d:%02d (first fire %s)",
			tag, schedule.Hour, schedule.Minute, first.Format(time.RFC3339))
	}

	log.Infof("scheduler: %d/%d enabled schedules registered", registered, len(enabled))
	return nil
}

// CancelSchedule removes exactly one schedule's trigger.
func (s *Scheduler) CancelSchedule(id uint64) error {
	return s.registry.Cancel(TriggerTag(id))
}

// HandleTrigger runs when a registered trigger fires. The schedule is
// re-read so disabling or deleting it between fires is honored, and its
// days-of-week list is checked against the fire day.
func (s *Scheduler) HandleTrigger(ctx context.Context, tag string) {
	id, ok := scheduleIDFromTag(tag)
	if !ok {
		log.WithField("tag", tag).Warn("scheduler: trigger with unknown tag")
		return
	}

	schedule, errGet := s.schedules.GetByID(ctx, id)
	if errGet != nil {
		log.WithError(errGet).WithField("schedule", id).
			Warn("scheduler: schedule lookup failed, skipping fire")
		return
	}
	if schedule == nil || !schedule.Enabled {
		log.WithField("schedule", id).Debug("scheduler: schedule gone or disabled, skipping fire")
		return
	}
	if !schedule.AppliesOn(s.now().Weekday()) {
		log.WithField("schedule", id).Debug("scheduler: schedule does not apply today")
		return
	}

	if errDeliver := s.deliverer.DeliverAll(ctx); errDeliver != nil {
		log.WithError(errDeliver).WithField("schedule", id).
			Error("scheduler: scheduled delivery failed")
	}
}

// NextFire computes the next wall-clock instant for an hour:minute schedule:
// today if still in the future, otherwise tomorrow.
func NextFire(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.After(now) {
		return candidate
	}
	return candidate.AddDate(0, 0, 1)
}
