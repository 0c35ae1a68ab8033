package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/infrastructure/metrics"
	"github.com/whattodo/core/internal/ports"
)

// Mutation is one queued change to the document. Apply runs against the
// document current when the mutation is dequeued, not when it was issued.
// Returning false skips the write.
type Mutation struct {
	Action entities.Action
	Apply  func(entities.Document) (entities.Document, bool)

	done chan writeResult
}

type writeResult struct {
	doc entities.Document
	err error
}

// CommitFunc writes a whole document to storage.
type CommitFunc func(ctx context.Context, doc entities.Document, action entities.Action) error

type subscriber struct {
	id int
	fn func(entities.Document)
}

// Coordinator owns the current document and serializes every write to its
// storage area. At most one write is in flight; mutations issued meanwhile are
// queued and applied in arrival order once it completes. Committed documents
// are handed to subscribers in registration order.
type Coordinator struct {
	area         ports.StorageArea
	engine       *Engine
	migrator     *Migrator
	writeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *logger.Logger

	mu          sync.Mutex
	busy        bool
	idle        chan struct{}
	queue       []Mutation
	current     entities.Document
	loaded      bool
	usage       float64
	subscribers []subscriber
	nextSubID   int
}

// NewCoordinator creates a coordinator over area. legacy may be nil when there
// is no older storage area to migrate from. A zero writeTimeout means writes
// are never abandoned.
func NewCoordinator(area, legacy ports.StorageArea, engine *Engine, writeTimeout time.Duration, m *metrics.Metrics, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Coordinator{
		area:         area,
		engine:       engine,
		writeTimeout: writeTimeout,
		metrics:      m,
		logger:       log.WithComponent("coordinator").WithFields("area", area.Name()),
		current:      entities.DefaultDocument(),
	}
	if legacy != nil {
		c.migrator = NewMigrator(legacy, c.commit, log)
	}
	return c
}

// Current returns the in-memory document, including provisional changes whose
// write has not completed yet.
func (c *Coordinator) Current() entities.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Snapshot returns the current document with the last computed usage ratio.
func (c *Coordinator) Snapshot() ports.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ports.Snapshot{Document: c.current, UsageRatio: c.usage}
}

// Busy reports whether a write or load is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// QueueLen returns the number of mutations waiting for the in-flight write.
func (c *Coordinator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Subscribe registers fn to receive every committed document.
func (c *Coordinator) Subscribe(fn func(entities.Document)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Apply runs m against the current document and starts writing the result.
// While another write is in flight m is queued instead and the current,
// pre-queue document is returned; the committed result reaches subscribers.
func (c *Coordinator) Apply(m Mutation) entities.Document {
	c.mu.Lock()
	if c.busy {
		c.queue = append(c.queue, m)
		depth := len(c.queue)
		c.metrics.SetQueueDepth(depth)
		current := c.current
		c.mu.Unlock()
		c.logger.Debugw("Mutation queued", "action", m.Action, "queue_length", depth)
		return current
	}

	next, changed := m.Apply(c.current)
	c.current = next
	if !changed {
		c.mu.Unlock()
		finish(m, next, nil)
		return next
	}
	c.markBusy()
	c.mu.Unlock()

	go func() {
		c.write(next, m)
		c.drain()
	}()
	return next
}

// Commit runs m through the write queue like Apply but waits for its write and
// returns the document m produced. A mutation that reports no change returns
// without writing.
func (c *Coordinator) Commit(ctx context.Context, m Mutation) (entities.Document, error) {
	done := make(chan writeResult, 1)
	m.done = done
	provisional := c.Apply(m)

	select {
	case res := <-done:
		return res.doc, res.err
	case <-ctx.Done():
		return provisional, ctx.Err()
	}
}

// Persist replaces the whole document through the write queue and waits for
// the write to complete.
func (c *Coordinator) Persist(ctx context.Context, doc entities.Document, action entities.Action) (entities.Document, error) {
	return c.Commit(ctx, Mutation{
		Action: action,
		Apply: func(entities.Document) (entities.Document, bool) {
			return doc, true
		},
	})
}

// GetData loads the document from storage: read, repair, migrate when not yet
// migrated, drop stale filters, then compute the usage ratio. While a write is
// in flight the last snapshot is returned instead. Only storage platform
// errors are reported.
func (c *Coordinator) GetData(ctx context.Context) (ports.Snapshot, error) {
	c.mu.Lock()
	if c.busy {
		snap := ports.Snapshot{Document: c.current, UsageRatio: c.usage}
		c.mu.Unlock()
		return snap, nil
	}
	c.markBusy()
	c.mu.Unlock()

	snap, committed, err := c.load(ctx)

	c.mu.Lock()
	var dropped []Mutation
	if err == nil {
		c.current = snap.Document
		c.usage = snap.UsageRatio
		c.loaded = true
	} else {
		snap = ports.Snapshot{Document: c.current, UsageRatio: c.usage}
		if !c.loaded {
			// Nothing real to apply queued changes to; writing them would
			// replace the stored record with defaults.
			dropped = c.queue
			c.queue = nil
		}
	}
	c.mu.Unlock()

	for _, m := range dropped {
		finish(m, snap.Document, fmt.Errorf("document not loaded: %w", err))
	}
	if len(dropped) > 0 {
		c.logger.Warnw("Dropped queued mutations after a failed load", "count", len(dropped))
	}
	if committed {
		c.notify(snap.Document)
	}

	c.drain()
	return snap, err
}

// Stale reports whether the storage area holds something other than the
// current document, e.g. because another process wrote it.
func (c *Coordinator) Stale(ctx context.Context) (bool, error) {
	raw, err := c.area.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read document: %w", err)
	}

	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	want, err := EncodeDocument(current)
	if err != nil {
		return false, err
	}
	return !reflect.DeepEqual(raw, want), nil
}

// Wait blocks until no write is in flight and the queue is empty.
func (c *Coordinator) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.busy {
			c.mu.Unlock()
			return nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) load(ctx context.Context) (snap ports.Snapshot, committed bool, err error) {
	raw, err := c.area.Get(ctx)
	if err != nil {
		return ports.Snapshot{}, false, fmt.Errorf("failed to read document: %w", err)
	}

	doc := Repair(raw)

	if !doc.Migrated && c.migrator != nil {
		stored := len(raw) > 0
		migrated, err := c.migrator.MigrateIfNeeded(ctx, doc, stored)
		if err != nil {
			return ports.Snapshot{}, false, fmt.Errorf("failed to migrate document: %w", err)
		}
		if migrated != nil {
			doc = *migrated
		}
		committed = migrated != nil || !stored
	}

	doc, changed := c.engine.CleanFilters(doc)
	if changed {
		if err := c.commit(ctx, doc, entities.ActionCleanData); err != nil {
			return ports.Snapshot{}, false, err
		}
		committed = true
	}

	return ports.Snapshot{Document: doc, UsageRatio: c.usageOf(doc)}, committed, nil
}

// drain applies queued mutations one at a time until the queue is empty, then
// marks the coordinator idle. The caller must have marked it busy.
func (c *Coordinator) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.busy = false
			close(c.idle)
			c.metrics.SetQueueDepth(0)
			c.mu.Unlock()
			return
		}
		m := c.queue[0]
		c.queue = c.queue[1:]
		c.metrics.SetQueueDepth(len(c.queue))

		next, changed := m.Apply(c.current)
		c.current = next
		c.mu.Unlock()

		if !changed {
			finish(m, next, nil)
			continue
		}
		c.write(next, m)
	}
}

func (c *Coordinator) write(doc entities.Document, m Mutation) {
	err := c.commit(context.Background(), doc, m.Action)
	finish(m, doc, err)
	if err != nil {
		// The in-memory document keeps the change; the next successful write
		// carries it to storage.
		return
	}
	c.notify(doc)
}

// commit writes doc to the storage area, bounded by the write timeout when one
// is configured.
func (c *Coordinator) commit(ctx context.Context, doc entities.Document, action entities.Action) error {
	start := time.Now()

	record, err := EncodeDocument(doc)
	if err == nil {
		err = c.set(ctx, record)
	}

	duration := time.Since(start)
	c.metrics.ObserveWrite(c.area.Name(), string(action), duration, err)
	c.logger.LogStorageWrite(c.area.Name(), string(action), encodedSize(doc), float64(duration.Microseconds())/1000, err)
	if err != nil {
		return fmt.Errorf("failed to write document (%s): %w", action, err)
	}

	usage := c.usageOf(doc)
	c.mu.Lock()
	c.usage = usage
	c.mu.Unlock()
	c.metrics.SetUsageRatio(usage)
	return nil
}

func (c *Coordinator) set(ctx context.Context, record map[string]any) error {
	if c.writeTimeout <= 0 {
		return c.area.Set(ctx, record)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- c.area.Set(ctx, record)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return entities.NewStorageError(c.area.Name(), "set", ctx.Err())
	}
}

// notify hands doc to subscribers in registration order. A panicking
// subscriber stops delivery to the ones after it.
func (c *Coordinator) notify(doc entities.Document) {
	c.mu.Lock()
	subs := append([]subscriber(nil), c.subscribers...)
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("Subscriber panicked", "panic", r)
		}
	}()
	for _, s := range subs {
		s.fn(doc)
	}
}

func (c *Coordinator) usageOf(doc entities.Document) float64 {
	quota := c.area.QuotaBytes()
	if quota <= 0 {
		return 0
	}
	return float64(encodedSize(doc)) / float64(quota)
}

// markBusy must be called with c.mu held.
func (c *Coordinator) markBusy() {
	c.busy = true
	c.idle = make(chan struct{})
}

func finish(m Mutation, doc entities.Document, err error) {
	if m.done != nil {
		m.done <- writeResult{doc: doc, err: err}
	}
}

// IsStorageError reports whether err came from a storage platform failure.
func IsStorageError(err error) bool {
	var se *entities.StorageError
	return errors.As(err, &se)
}
