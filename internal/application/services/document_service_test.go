package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/whattodo/core/internal/domain/entities"
)

func newTestDocumentService(area *testArea) *DocumentService {
	e := newTestEngine()
	return NewDocumentService(e, NewCoordinator(area, nil, e, 0, nil, nil), nil)
}

func TestLoadRelocatesPinnedTasks(t *testing.T) {
	area := newTestArea("local")
	area.put(t, map[string]any{
		"migrated": true,
		"labels":   entities.DefaultDocument().Labels,
		"tasks": map[string]any{
			testYesterday: []map[string]any{
				{"id": "p", "title": "pinned", "pinned": true, "created_at": "2026-10-18T08:00:00Z"},
				{"id": "u", "title": "unpinned", "created_at": "2026-10-18T07:00:00Z"},
			},
		},
	})
	s := newTestDocumentService(area)

	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := snap.Document.Tasks[testToday]; len(got) != 1 || got[0].ID != "p" {
		t.Fatalf("expected pinned task in today, got %+v", snap.Document.Tasks)
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := area.stored(t).Tasks[testToday]; len(got) != 1 {
		t.Fatalf("expected relocation persisted, got %+v", got)
	}
}

func TestTaskLifecycleThroughService(t *testing.T) {
	area := newTestArea("local")
	s := newTestDocumentService(area)

	task, doc := s.AddTask(entities.Task{Title: "ship it", Labels: []string{entities.DefaultWorkLabelID}})
	if task.ID == "" || doc.Tasks[testToday][0].ID != task.ID {
		t.Fatalf("expected returned task in the document, got %+v", doc.Tasks)
	}

	if _, err := s.SetCompleted(task.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.SetPinned(task.ID, true); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	stored := area.stored(t).Tasks[testToday][0]
	if !stored.Completed || stored.CompletedAt == "" || !stored.Pinned {
		t.Fatalf("expected completed pinned task stored, got %+v", stored)
	}

	if _, err := s.RemoveTask(task.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.RemoveTask(task.ID); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if area.stored(t).TaskCount() != 0 {
		t.Fatalf("expected task removed from storage")
	}
}

func TestLabelNotFoundErrors(t *testing.T) {
	s := newTestDocumentService(newTestArea("local"))

	if _, err := s.UpdateLabel(entities.Label{ID: "ghost"}); !errors.Is(err, entities.ErrLabelNotFound) {
		t.Fatalf("expected ErrLabelNotFound, got %v", err)
	}
	if _, err := s.RemoveLabel("ghost"); !errors.Is(err, entities.ErrLabelNotFound) {
		t.Fatalf("expected ErrLabelNotFound, got %v", err)
	}
	if _, err := s.MoveTaskToToday("ghost"); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUploadRepairsAndClearResets(t *testing.T) {
	area := newTestArea("local")
	s := newTestDocumentService(area)

	doc, err := s.Upload(context.Background(), map[string]any{
		"filters": []any{"ghost", entities.DefaultWorkLabelID},
		"labels":  "broken",
		"notes":   map[string]any{testToday: "uploaded"},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !reflect.DeepEqual(doc.Filters, []string{entities.DefaultWorkLabelID}) {
		t.Fatalf("expected filters cleaned, got %+v", doc.Filters)
	}
	if len(doc.Labels) != 2 || doc.Notes[testToday] != "uploaded" {
		t.Fatalf("expected repaired upload, got %+v", doc)
	}
	if !reflect.DeepEqual(area.stored(t), doc) {
		t.Fatalf("expected upload persisted")
	}

	cleared, err := s.Clear(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !reflect.DeepEqual(cleared, entities.DefaultDocument()) || !reflect.DeepEqual(area.stored(t), cleared) {
		t.Fatalf("expected default document after clear")
	}
}

func TestNoteAndFilters(t *testing.T) {
	area := newTestArea("local")
	s := newTestDocumentService(area)

	s.UpdateNote("", testToday)
	if area.setCount() != 0 {
		t.Fatalf("expected blank note skipped")
	}

	s.UpdateNote("remember", testToday)
	s.UpdateFilters([]string{entities.DefaultPersonalLabelID, "ghost"})
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	stored := area.stored(t)
	if stored.Notes[testToday] != "remember" || !reflect.DeepEqual(stored.Filters, []string{entities.DefaultPersonalLabelID}) {
		t.Fatalf("unexpected stored document: %+v", stored)
	}
}
