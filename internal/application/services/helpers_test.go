package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/ports"
)

var testNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

const (
	testToday     = "Mon Oct 19 2026"
	testYesterday = "Sun Oct 18 2026"
)

func newTestEngine() *Engine {
	n := 0
	return NewEngine(time.UTC, func() time.Time { return testNow }, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

// testArea is an in-memory storage area whose writes can be held back.
type testArea struct {
	name  string
	quota int64

	mu       sync.Mutex
	record   map[string]any
	sets     []map[string]any
	cleared  int
	getErr   error
	setErr   error
	clearErr error
	gate     chan struct{}
	started  chan struct{}
	// onGet runs at the start of every Get, without the area lock held.
	onGet func()
}

func newTestArea(name string) *testArea {
	return &testArea{name: name, quota: 1 << 20, record: map[string]any{}}
}

func (a *testArea) Name() string      { return a.name }
func (a *testArea) QuotaBytes() int64 { return a.quota }

func (a *testArea) Get(ctx context.Context) (map[string]any, error) {
	a.mu.Lock()
	onGet := a.onGet
	a.mu.Unlock()
	if onGet != nil {
		onGet()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.getErr != nil {
		return nil, entities.NewStorageError(a.name, "get", a.getErr)
	}
	return copyRecord(a.record), nil
}

func (a *testArea) Set(ctx context.Context, record map[string]any) error {
	a.mu.Lock()
	gate, started := a.gate, a.started
	a.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return entities.NewStorageError(a.name, "set", ctx.Err())
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.setErr != nil {
		return entities.NewStorageError(a.name, "set", a.setErr)
	}
	a.record = copyRecord(record)
	a.sets = append(a.sets, copyRecord(record))
	return nil
}

func (a *testArea) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clearErr != nil {
		return entities.NewStorageError(a.name, "clear", a.clearErr)
	}
	a.cleared++
	a.record = map[string]any{}
	return nil
}

// hold makes every following Set block until release is called.
func (a *testArea) hold() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gate = gate
	a.started = make(chan struct{}, 16)
	a.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.gate = nil
			a.mu.Unlock()
			close(gate)
		})
	}
}

func (a *testArea) setCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sets)
}

func (a *testArea) stored(t *testing.T) entities.Document {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	return Repair(copyRecord(a.record))
}

func (a *testArea) put(t *testing.T, v any) {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record = toRecord(t, v)
}

var _ ports.StorageArea = (*testArea)(nil)

func copyRecord(r map[string]any) map[string]any {
	data, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func toRecord(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("coordinator did not go idle: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
