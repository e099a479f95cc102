// Package capture is the intake point of the bundling pipeline. It receives
// posted-notification events, runs them through the rule evaluator, and for
// suppressed notifications cancels the original and persists a held copy.
//
// Events are dispatched onto a fixed set of workers sharded by source
// package, so events from one package are processed in arrival order while
// different packages proceed in parallel.
package capture

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/rules"
	"github.com/floreteng/bundld/internal/settings"
)

const (
	defaultShardCount = 4
	defaultQueueDepth = 64
	// submitTimeout bounds how long the intake boundary waits for a verdict
	// before failing open, so a stalled store never blocks the host.
	submitTimeout = 5 * time.Second
)

// Canceler dismisses the original notification at the listener boundary.
type Canceler interface {
	Cancel(ctx context.Context, key string) error
}

// NotificationSink persists captured notifications.
type NotificationSink interface {
	Insert(ctx context.Context, n *models.CapturedNotification) error
}

// Inventory resolves display names for packages.
type Inventory interface {
	AppName(pkg string) string
}

// Result is the verdict reported back to the intake boundary.
type Result struct {
	Decision rules.Decision
	Captured bool
}

type task struct {
	event Event
	done  chan Result
}

// Listener runs the capture pipeline.
type Listener struct {
	evaluator *rules.Evaluator
	sink      NotificationSink
	canceler  Canceler
	inventory Inventory

	shards []chan task
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewListener constructs a Listener.
func NewListener(evaluator *rules.Evaluator, sink NotificationSink, canceler Canceler, inv Inventory) *Listener {
	l := &Listener{
		evaluator: evaluator,
		sink:      sink,
		canceler:  canceler,
		inventory: inv,
		shards:    make([]chan task, defaultShardCount),
	}
	for i := range l.shards {
		l.shards[i] = make(chan task, defaultQueueDepth)
	}
	return l
}

// Start launches the shard workers. They exit when ctx is cancelled,
// abandoning queued work.
func (l *Listener) Start(ctx context.Context) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	for i := range l.shards {
		l.wg.Add(1)
		go l.runShard(ctx, l.shards[i])
	}
	log.Infof("capture listener started (shards=%d queue=%d)", len(l.shards), defaultQueueDepth)
}

// Wait blocks until all shard workers have exited.
func (l *Listener) Wait() {
	l.wg.Wait()
}

// Submit hands an event to its package shard and waits for the verdict.
//
// When bundling is disabled, the queue is saturated, or processing does not
// finish in time, Submit fails open and reports allow so the original
// notification stays visible.
func (l *Listener) Submit(ctx context.Context, ev Event) Result {
	if !settings.BundlingEnabled() {
		return Result{Decision: rules.DecisionAllow}
	}

	pkg := strings.TrimSpace(ev.PackageName)
	if pkg == "" {
		log.Warn("capture: event without package name dropped")
		return Result{Decision: rules.DecisionAllow}
	}
	ev.PackageName = pkg
	if strings.TrimSpace(ev.Key) == "" {
		ev.Key = uuid.NewString()
	}

	t := task{event: ev, done: make(chan Result, 1)}
	shard := l.shards[shardFor(pkg, len(l.shards))]

	select {
	case shard <- t:
	default:
		log.WithField("package", pkg).Warn("capture: shard queue full, allowing notification")
		return Result{Decision: rules.DecisionAllow}
	}

	timer := time.NewTimer(submitTimeout)
	defer timer.Stop()
	select {
	case res := <-t.done:
		return res
	case <-ctx.Done():
		return Result{Decision: rules.DecisionAllow}
	case <-timer.C:
		log.WithField("package", pkg).Warn("capture: verdict timed out, allowing notification")
		return Result{Decision: rules.DecisionAllow}
	}
}

func (l *Listener) runShard(ctx context.Context, queue <-chan task) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-queue:
			t.done <- l.process(ctx, t.event)
		}
	}
}

// process evaluates one event and applies the verdict's side effects.
func (l *Listener) process(ctx context.Context, ev Event) Result {
	decision := l.evaluator.Evaluate(ctx, rules.Input{
		SourcePackage: ev.PackageName,
		Category:      ev.Category,
		Title:         ev.Title,
		Text:          ev.Text,
		SubText:       ev.SubText,
	})

	if decision != rules.DecisionSuppress {
		return Result{Decision: decision}
	}

	// Cancel first, then persist. The two are not transactional: a persist
	// failure after a successful cancel loses the notification, which is
	// accepted and logged rather than retried.
	if errCancel := l.canceler.Cancel(ctx, ev.Key); errCancel != nil {
		log.WithError(errCancel).WithField("package", ev.PackageName).
			Warn("capture: cancel failed, holding copy anyway")
	}

	captured := l.persist(ctx, ev)
	return Result{Decision: decision, Captured: captured}
}

func (l *Listener) persist(ctx context.Context, ev Event) bool {
	appName := strings.TrimSpace(ev.AppName)
	if appName == "" && l.inventory != nil {
		appName = l.inventory.AppName(ev.PackageName)
	}
	if appName == "" {
		appName = ev.PackageName
	}

	n := &models.CapturedNotification{
		Key:           ev.Key,
		Tag:           ev.Tag,
		SourcePackage: ev.PackageName,
		AppName:       appName,
		Title:         optional(ev.Title),
		Text:          optional(ev.Text),
		SubText:       optional(ev.SubText),
		Category:      optional(ev.Category),
		Extras:        boundedExtras(ev.Extras),
		Timestamp:     time.Now(),
	}

	if errInsert := l.sink.Insert(ctx, n); errInsert != nil {
		log.WithError(errInsert).WithField("package", ev.PackageName).
			Error("capture: persist failed, notification lost")
		return false
	}

	log.WithField("package", ev.PackageName).Debug("capture: notification held for bundling")
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func shardFor(pkg string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pkg))
	return int(h.Sum32() % uint32(shards))
}
