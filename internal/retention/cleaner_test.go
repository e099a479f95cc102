package retention

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/floreteng/bundld/internal/settings"
)

type fakeDeleter struct {
	calls   int
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakeDeleter) DeleteDeliveredOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func TestCleanupOnceUsesRetentionDays(t *testing.T) {
	settings.Store(time.Now(), map[string]json.RawMessage{
		settings.RetentionDaysKey: json.RawMessage(`7`),
	})
	t.Cleanup(func() { settings.Store(time.Now(), nil) })

	deleter := &fakeDeleter{deleted: 3}
	cleaner := NewCleaner(deleter)
	cleaner.CleanupOnce(context.Background())

	if deleter.calls != 1 {
		t.Fatalf("delete calls = %d, want 1", deleter.calls)
	}
	want := time.Now().UTC().AddDate(0, 0, -7)
	got := deleter.cutoffs[0]
	if diff := got.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %s, want about %s", got, want)
	}
}

func TestCleanupOnceDisabledByZeroRetention(t *testing.T) {
	settings.Store(time.Now(), map[string]json.RawMessage{
		settings.RetentionDaysKey: json.RawMessage(`0`),
	})
	t.Cleanup(func() { settings.Store(time.Now(), nil) })

	deleter := &fakeDeleter{}
	NewCleaner(deleter).CleanupOnce(context.Background())

	if deleter.calls != 0 {
		t.Fatalf("delete calls = %d, want 0", deleter.calls)
	}
}

func TestCleanupOnceFallsBackToDefault(t *testing.T) {
	settings.Store(time.Now(), nil)

	deleter := &fakeDeleter{}
	NewCleaner(deleter).CleanupOnce(context.Background())

	if deleter.calls != 1 {
		t.Fatalf("delete calls = %d, want 1", deleter.calls)
	}
	want := time.Now().UTC().AddDate(0, 0, -settings.DefaultRetentionDays)
	if diff := deleter.cutoffs[0].Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %s, want about %s", deleter.cutoffs[0], want)
	}
}

func TestNewCleanerNilStore(t *testing.T) {
	if c := NewCleaner(nil); c != nil {
		t.Fatal("expected nil cleaner for nil store")
	}
}
