package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/whattodo/core/internal/domain/entities"
)

func addTaskMutation(e *Engine, title string) Mutation {
	task := e.NewTask(entities.Task{Title: title})
	return Mutation{
		Action: entities.ActionAddTask,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return e.InsertTask(d, task), true
		},
	}
}

func TestQueuedMutationAppliesOnTopOfInFlightWrite(t *testing.T) {
	e := newTestEngine()
	area := newTestArea("local")
	c := NewCoordinator(area, nil, e, 0, nil, nil)

	var mu sync.Mutex
	var seen []entities.Document
	c.Subscribe(func(doc entities.Document) {
		mu.Lock()
		seen = append(seen, doc)
		mu.Unlock()
	})

	release := area.hold()
	first := c.Apply(addTaskMutation(e, "first"))
	<-area.started

	provisional := c.Apply(addTaskMutation(e, "second"))
	if !reflect.DeepEqual(provisional, first) {
		t.Fatalf("expected queued call to return the pre-queue document")
	}
	if c.QueueLen() != 1 || !c.Busy() {
		t.Fatalf("expected one queued mutation while writing, got %d", c.QueueLen())
	}

	release()
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected two committed documents, got %d", len(seen))
	}
	final := seen[1].Tasks[testToday]
	if len(final) != 2 || final[0].Title != "second" || final[1].Title != "first" {
		t.Fatalf("expected second applied on top of first, got %+v", final)
	}
	if got := area.stored(t).Tasks[testToday]; len(got) != 2 {
		t.Fatalf("expected both tasks persisted, got %+v", got)
	}
}

func TestGetDataOnEmptyStorageReturnsDefaults(t *testing.T) {
	area := newTestArea("local")
	legacy := newTestArea("sync")
	c := NewCoordinator(area, legacy, newTestEngine(), 0, nil, nil)

	snap, err := c.GetData(context.Background())
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if !reflect.DeepEqual(snap.Document, entities.DefaultDocument()) {
		t.Fatalf("expected default document, got %+v", snap.Document)
	}
	if stored := area.stored(t); stored.Migrated {
		t.Fatalf("expected migrated=false recorded")
	}
	if snap.UsageRatio <= 0 || snap.UsageRatio >= 1 {
		t.Fatalf("expected a small usage ratio, got %v", snap.UsageRatio)
	}
}

func TestGetDataKeepsValidDocument(t *testing.T) {
	area := newTestArea("local")
	area.put(t, map[string]any{
		"filters": []string{"x"},
		"labels":  []map[string]string{{"id": "x", "title": "X", "color": "#000"}},
		"tasks":   map[string]any{},
		"notes":   map[string]any{},
	})
	c := NewCoordinator(area, newTestArea("sync"), newTestEngine(), 0, nil, nil)

	snap, err := c.GetData(context.Background())
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	want := entities.Document{
		Filters: []string{"x"},
		Labels:  []entities.Label{{ID: "x", Title: "X", Color: "#000"}},
		Tasks:   map[string][]entities.Task{},
		Notes:   map[string]string{},
	}
	if !reflect.DeepEqual(snap.Document, want) {
		t.Fatalf("expected document unchanged\nwant %+v\ngot  %+v", want, snap.Document)
	}
}

func TestGetDataDropsStaleFilters(t *testing.T) {
	area := newTestArea("local")
	area.put(t, map[string]any{
		"filters":  []string{"gone", entities.DefaultWorkLabelID},
		"labels":   entities.DefaultDocument().Labels,
		"migrated": true,
	})
	c := NewCoordinator(area, nil, newTestEngine(), 0, nil, nil)

	snap, err := c.GetData(context.Background())
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if !reflect.DeepEqual(snap.Document.Filters, []string{entities.DefaultWorkLabelID}) {
		t.Fatalf("expected stale filter dropped, got %+v", snap.Document.Filters)
	}
	if got := area.stored(t).Filters; !reflect.DeepEqual(got, []string{entities.DefaultWorkLabelID}) {
		t.Fatalf("expected cleaned filters written back, got %+v", got)
	}
}

func TestGetDataWhileWritingReturnsSnapshot(t *testing.T) {
	e := newTestEngine()
	area := newTestArea("local")
	c := NewCoordinator(area, nil, e, 0, nil, nil)

	release := area.hold()
	defer release()
	applied := c.Apply(addTaskMutation(e, "pending"))
	<-area.started

	snap, err := c.GetData(context.Background())
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if !reflect.DeepEqual(snap.Document, applied) {
		t.Fatalf("expected in-memory snapshot while busy")
	}
}

func TestGetDataReportsPlatformErrors(t *testing.T) {
	area := newTestArea("local")
	area.getErr = errBoom
	c := NewCoordinator(area, nil, newTestEngine(), 0, nil, nil)

	_, err := c.GetData(context.Background())
	if !errors.Is(err, errBoom) || !IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if c.Busy() {
		t.Fatalf("expected coordinator idle after a failed load")
	}
}

func TestFailedWriteKeepsInMemoryDocument(t *testing.T) {
	e := newTestEngine()
	area := newTestArea("local")
	area.setErr = errBoom
	c := NewCoordinator(area, nil, e, 0, nil, nil)

	notified := false
	c.Subscribe(func(entities.Document) { notified = true })

	doc, err := c.Commit(context.Background(), addTaskMutation(e, "lost?"))
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if len(doc.Tasks[testToday]) != 1 || len(c.Current().Tasks[testToday]) != 1 {
		t.Fatalf("expected in-memory document to keep the task")
	}
	if notified {
		t.Fatalf("subscribers must not see a failed write")
	}
}

func TestPanickingSubscriberStopsLaterOnes(t *testing.T) {
	e := newTestEngine()
	area := newTestArea("local")
	c := NewCoordinator(area, nil, e, 0, nil, nil)

	var mu sync.Mutex
	calls := map[string]int{}
	record := func(name string) {
		mu.Lock()
		calls[name]++
		mu.Unlock()
	}

	c.Subscribe(func(entities.Document) { record("first") })
	c.Subscribe(func(entities.Document) { record("panicky"); panic("render failed") })
	c.Subscribe(func(entities.Document) { record("last") })

	if _, err := c.Commit(context.Background(), addTaskMutation(e, "one")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	waitIdle(t, c)
	if _, err := c.Commit(context.Background(), addTaskMutation(e, "two")); err != nil {
		t.Fatalf("coordinator did not survive the panic: %v", err)
	}
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	if calls["first"] != 2 || calls["panicky"] != 2 || calls["last"] != 0 {
		t.Fatalf("unexpected subscriber calls: %+v", calls)
	}
}

func TestUnsubscribe(t *testing.T) {
	e := newTestEngine()
	c := NewCoordinator(newTestArea("local"), nil, e, 0, nil, nil)

	calls := 0
	unsubscribe := c.Subscribe(func(entities.Document) { calls++ })
	unsubscribe()

	if _, err := c.Commit(context.Background(), addTaskMutation(e, "quiet")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	waitIdle(t, c)
	if calls != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestWriteTimeoutUnwedgesCoordinator(t *testing.T) {
	e := newTestEngine()
	area := newTestArea("local")
	c := NewCoordinator(area, nil, e, 20*time.Millisecond, nil, nil)

	release := area.hold()
	defer release()

	_, err := c.Commit(context.Background(), addTaskMutation(e, "slow"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	waitIdle(t, c)
}

func TestUnchangedMutationSkipsWrite(t *testing.T) {
	c := NewCoordinator(newTestArea("local"), nil, newTestEngine(), 0, nil, nil)
	area := c.area.(*testArea)

	doc, err := c.Commit(context.Background(), Mutation{
		Action: entities.ActionUpdateNote,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return d, false
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !reflect.DeepEqual(doc, entities.DefaultDocument()) {
		t.Fatalf("expected current document back")
	}
	if area.setCount() != 0 || c.Busy() {
		t.Fatalf("expected no write")
	}
}

func TestPersistReplacesDocument(t *testing.T) {
	area := newTestArea("local")
	c := NewCoordinator(area, nil, newTestEngine(), 0, nil, nil)

	doc := entities.DefaultDocument()
	doc.Notes[testToday] = "uploaded"
	got, err := c.Persist(context.Background(), doc, entities.ActionUploadData)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if !reflect.DeepEqual(got, doc) || !reflect.DeepEqual(area.stored(t), doc) {
		t.Fatalf("expected document written as given")
	}
}

func TestLoadTimeMigrationReachesSubscribers(t *testing.T) {
	area := newTestArea("local")
	legacy := newTestArea("sync")
	legacy.put(t, map[string]any{
		"notes": map[string]string{testToday: "from the legacy area"},
	})
	c := NewCoordinator(area, legacy, newTestEngine(), 0, nil, nil)

	var got []entities.Document
	c.Subscribe(func(d entities.Document) { got = append(got, d) })

	if _, err := c.GetData(context.Background()); err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one notification for the migration commit, got %d", len(got))
	}
	if !got[0].Migrated || got[0].Notes[testToday] != "from the legacy area" {
		t.Fatalf("expected migrated document delivered, got %+v", got[0])
	}
	if !area.stored(t).Migrated {
		t.Fatalf("expected migrated document stored")
	}
}

func TestRepeatedLoadsDoNotRewriteRecordedDocument(t *testing.T) {
	area := newTestArea("local")
	legacy := newTestArea("sync")
	c := NewCoordinator(area, legacy, newTestEngine(), 0, nil, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.GetData(context.Background()); err != nil {
			t.Fatalf("get data: %v", err)
		}
	}
	if n := area.setCount(); n != 1 {
		t.Fatalf("expected only the first load to record the document, got %d writes", n)
	}
}

func TestFailedFirstLoadDropsQueuedMutations(t *testing.T) {
	area := newTestArea("local")
	area.put(t, map[string]any{"notes": map[string]string{testToday: "keep me"}})
	area.getErr = errBoom
	e := newTestEngine()
	c := NewCoordinator(area, nil, e, 0, nil, nil)

	errc := make(chan error, 1)
	area.onGet = func() {
		go func() {
			_, err := c.Commit(context.Background(), addTaskMutation(e, "queued"))
			errc <- err
		}()
		deadline := time.Now().Add(2 * time.Second)
		for c.QueueLen() == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := c.GetData(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected load error, got %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected queued mutation to fail with the load error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("queued mutation never finished")
	}

	waitIdle(t, c)
	if n := area.setCount(); n != 0 {
		t.Fatalf("expected no writes over the unread record, got %d", n)
	}
}

func TestStale(t *testing.T) {
	area := newTestArea("local")
	c := NewCoordinator(area, newTestArea("sync"), newTestEngine(), 0, nil, nil)
	ctx := context.Background()

	if _, err := c.GetData(ctx); err != nil {
		t.Fatalf("get data: %v", err)
	}
	if stale, err := c.Stale(ctx); err != nil || stale {
		t.Fatalf("expected storage to match after load, got stale=%v err=%v", stale, err)
	}

	doc := entities.DefaultDocument()
	doc.Notes[testToday] = "written elsewhere"
	area.put(t, doc)
	if stale, err := c.Stale(ctx); err != nil || !stale {
		t.Fatalf("expected outside write detected, got stale=%v err=%v", stale, err)
	}
}
