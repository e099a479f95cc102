package scheduler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// FireFunc is invoked with the trigger tag each time a trigger fires.
type FireFunc func(ctx context.Context, tag string)

// TimerRegistry is an in-process TriggerRegistry backed by timers. It is the
// daemon equivalent of the OS alarm facility: triggers live only for the
// process lifetime, and ScheduleAll at startup plays the role of boot-time
// re-registration.
type TimerRegistry struct {
	fire FireFunc

	mu       sync.Mutex
	ctx      context.Context
	started  bool
	triggers map[string]*trigger
}

type trigger struct {
	group string
	stop  chan struct{}
}

// NewTimerRegistry constructs a TimerRegistry that invokes fire on each
// trigger firing.
func NewTimerRegistry(fire FireFunc) *TimerRegistry {
	return &TimerRegistry{
		fire:     fire,
		triggers: map[string]*trigger{},
	}
}

// Start binds the registry to a lifecycle context. Triggers registered before
// Start are rejected.
func (r *TimerRegistry) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	r.started = true
}

// RegisterPeriodic starts a recurring trigger. An existing trigger under the
// same tag is replaced.
func (r *TimerRegistry) RegisterPeriodic(group, tag string, firstFire time.Time, every time.Duration) error {
	if strings.TrimSpace(tag) == "" {
		return errors.New("scheduler: empty trigger tag")
	}
	if every <= 0 {
		return errors.New("scheduler: non-positive trigger period")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return errors.New("scheduler: registry not started")
	}

	if existing, ok := r.triggers[tag]; ok {
		close(existing.stop)
	}
	t := &trigger{group: group, stop: make(chan struct{})}
	r.triggers[tag] = t

	go r.run(r.ctx, tag, t, firstFire, every)
	return nil
}

// Cancel stops exactly one trigger.
func (r *TimerRegistry) Cancel(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.triggers[tag]; ok {
		close(t.stop)
		delete(r.triggers, tag)
	}
	return nil
}

// CancelGroup stops every trigger registered under the group.
func (r *TimerRegistry) CancelGroup(group string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tag, t := range r.triggers {
		if t.group == group {
			close(t.stop)
			delete(r.triggers, tag)
		}
	}
	return nil
}

// ActiveTags returns the sorted tags of live triggers.
func (r *TimerRegistry) ActiveTags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.triggers))
	for tag := range r.triggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (r *TimerRegistry) run(ctx context.Context, tag string, t *trigger, firstFire time.Time, every time.Duration) {
	delay := time.Until(firstFire)
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-timer.C:
		}

		log.WithField("tag", tag).Debug("trigger fired")
		r.fire(ctx, tag)
		timer.Reset(every)
	}
}
