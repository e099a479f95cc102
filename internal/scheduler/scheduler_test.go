package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/floreteng/bundld/internal/models"
)

type fakeScheduleSource struct {
	schedules []models.Schedule
}

func (f *fakeScheduleSource) Enabled(context.Context) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range f.schedules {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScheduleSource) GetByID(_ context.Context, id uint64) (*models.Schedule, error) {
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			return &f.schedules[i], nil
		}
	}
	return nil, nil
}

type fakeDeliverer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDeliverer) DeliverAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newRegistry(t *testing.T, fire FireFunc) (*TimerRegistry, context.CancelFunc) {
	t.Helper()
	if fire == nil {
		fire = func(context.Context, string) {}
	}
	r := NewTimerRegistry(fire)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	return r, cancel
}

func TestNextFireTodayWhenStillFuture(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	got := NextFire(now, 9, 0)
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestNextFireTomorrowWhenPassed(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	got := NextFire(now, 9, 0)
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestNextFireExactNowRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	got := NextFire(now, 9, 0)
	if got.Day() != 3 {
		t.Fatalf("a fire time equal to now must roll over, got %s", got)
	}
}

func TestScheduleAllIsIdempotent(t *testing.T) {
	registry, cancel := newRegistry(t, nil)
	defer cancel()

	source := &fakeScheduleSource{schedules: []models.Schedule{
		{ID: 1, Hour: 9, Minute: 0, Enabled: true},
		{ID: 2, Hour: 18, Minute: 30, Enabled: true},
		{ID: 3, Hour: 12, Minute: 0, Enabled: false},
	}}
	s := NewScheduler(source, registry, &fakeDeliverer{})

	for i := 0; i < 3; i++ {
		if errSchedule := s.ScheduleAll(context.Background()); errSchedule != nil {
			t.Fatalf("schedule all (pass %d): %v", i+1, errSchedule)
		}
	}

	tags := registry.ActiveTags()
	if len(tags) != 2 {
		t.Fatalf("got %d triggers, want 2: %v", len(tags), tags)
	}
	if tags[0] != "bundle_delivery_1" || tags[1] != "bundle_delivery_2" {
		t.Fatalf("tags: %v", tags)
	}
}

func TestScheduleAllDropsDisabledSchedules(t *testing.T) {
	registry, cancel := newRegistry(t, nil)
	defer cancel()

	source := &fakeScheduleSource{schedules: []models.Schedule{
		{ID: 1, Hour: 9, Minute: 0, Enabled: true},
	}}
	s := NewScheduler(source, registry, &fakeDeliverer{})

	if errSchedule := s.ScheduleAll(context.Background()); errSchedule != nil {
		t.Fatalf("schedule all: %v", errSchedule)
	}
	source.schedules[0].Enabled = false
	if errSchedule := s.ScheduleAll(context.Background()); errSchedule != nil {
		t.Fatalf("schedule all: %v", errSchedule)
	}

	if tags := registry.ActiveTags(); len(tags) != 0 {
		t.Fatalf("disabled schedule left triggers behind: %v", tags)
	}
}

func TestCancelScheduleRemovesOneTrigger(t *testing.T) {
	registry, cancel := newRegistry(t, nil)
	defer cancel()

	source := &fakeScheduleSource{schedules: []models.Schedule{
		{ID: 1, Hour: 9, Minute: 0, Enabled: true},
		{ID: 2, Hour: 18, Minute: 0, Enabled: true},
	}}
	s := NewScheduler(source, registry, &fakeDeliverer{})

	if errSchedule := s.ScheduleAll(context.Background()); errSchedule != nil {
		t.Fatalf("schedule all: %v", errSchedule)
	}
	if errCancel := s.CancelSchedule(1); errCancel != nil {
		t.Fatalf("cancel schedule: %v", errCancel)
	}

	tags := registry.ActiveTags()
	if len(tags) != 1 || tags[0] != "bundle_delivery_2" {
		t.Fatalf("tags: %v", tags)
	}
}

func TestHandleTriggerDelivers(t *testing.T) {
	deliverer := &fakeDeliverer{}
	source := &fakeScheduleSource{schedules: []models.Schedule{
		{ID: 7, Hour: 9, Minute: 0, Enabled: true},
	}}
	s := NewScheduler(source, nil, deliverer)

	s.HandleTrigger(context.Background(), TriggerTag(7))
	if deliverer.count() != 1 {
		t.Fatalf("deliver calls: %d", deliverer.count())
	}
}

func TestHandleTriggerSkipsDisabledOrMissing(t *testing.T) {
	deliverer := &fakeDeliverer{}
	source := &fakeScheduleSource{schedules: []models.Schedule{
		{ID: 7, Hour: 9, Minute: 0, Enabled: false},
	}}
	s := NewScheduler(source, nil, deliverer)

	s.HandleTrigger(context.Background(), TriggerTag(7))
	s.HandleTrigger(context.Background(), TriggerTag(99))
	s.HandleTrigger(context.Background(), "not_a_bundle_tag")
	if deliverer.count() != 0 {
		t.Fatalf("deliver calls: %d, want 0", deliverer.count())
	}
}

func TestHandleTriggerHonorsDaysOfWeek(t *testing.T) {
	deliverer := &fakeDeliverer{}
	// 2026-03-02 is a Monday (weekday 1); restrict to Sunday only.
	source := &fakeScheduleSource{schedules: []models.Schedule{
		{ID: 7, Hour: 9, Minute: 0, Enabled: true, DaysOfWeek: datatypes.JSON(`[0]`)},
	}}
	s := NewScheduler(source, nil, deliverer)
	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	s.HandleTrigger(context.Background(), TriggerTag(7))
	if deliverer.count() != 0 {
		t.Fatal("schedule restricted to Sunday must not fire on Monday")
	}
}

func TestTimerRegistryFiresAndRepeats(t *testing.T) {
	fired := make(chan string, 8)
	registry, cancel := newRegistry(t, func(_ context.Context, tag string) {
		fired <- tag
	})
	defer cancel()

	errRegister := registry.RegisterPeriodic(GroupTag, "bundle_delivery_1", time.Now().Add(10*time.Millisecond), 20*time.Millisecond)
	if errRegister != nil {
		t.Fatalf("register: %v", errRegister)
	}

	for i := 0; i < 2; i++ {
		select {
		case tag := <-fired:
			if tag != "bundle_delivery_1" {
				t.Fatalf("fired tag: %s", tag)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("trigger did not fire (%d fires seen)", i)
		}
	}
}

func TestTimerRegistryReplaceSemantics(t *testing.T) {
	registry, cancel := newRegistry(t, nil)
	defer cancel()

	far := time.Now().Add(time.Hour)
	for i := 0; i < 3; i++ {
		if errRegister := registry.RegisterPeriodic(GroupTag, "bundle_delivery_1", far, time.Hour); errRegister != nil {
			t.Fatalf("register: %v", errRegister)
		}
	}
	if tags := registry.ActiveTags(); len(tags) != 1 {
		t.Fatalf("replace must not duplicate: %v", tags)
	}
}
