package services

import (
	"reflect"
	"testing"

	"github.com/whattodo/core/internal/domain/entities"
)

func TestRepairReturnsDefaultsForUnusableInput(t *testing.T) {
	inputs := map[string]any{
		"nil":        nil,
		"array":      []any{map[string]any{"filters": []any{}}},
		"empty map":  map[string]any{},
		"string":     "tasks",
		"number":     42.0,
		"nil record": map[string]any(nil),
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			if got := Repair(raw); !reflect.DeepEqual(got, entities.DefaultDocument()) {
				t.Fatalf("expected default document, got %+v", got)
			}
		})
	}
}

func TestRepairReplacesOnlyTheMalformedField(t *testing.T) {
	raw := map[string]any{
		"tasks": []any{map[string]any{"id": "t1"}},
		"labels": []any{
			map[string]any{"id": "x", "title": "Errands", "color": "#fff"},
		},
		"filters":  []any{"x"},
		"migrated": true,
	}

	doc := Repair(raw)

	if len(doc.Tasks) != 0 || doc.Tasks == nil {
		t.Fatalf("expected default tasks, got %+v", doc.Tasks)
	}
	want := []entities.Label{{ID: "x", Title: "Errands", Color: "#fff"}}
	if !reflect.DeepEqual(doc.Labels, want) {
		t.Fatalf("expected labels preserved, got %+v", doc.Labels)
	}
	if !reflect.DeepEqual(doc.Filters, []string{"x"}) {
		t.Fatalf("expected filters preserved, got %+v", doc.Filters)
	}
	if !doc.Migrated {
		t.Fatalf("expected migrated flag preserved")
	}
}

func TestRepairCorruptLegacyShapeFallsBackPerField(t *testing.T) {
	raw := map[string]any{
		"filters": nil,
		"tasks":   []any{map[string]any{"id": "1", "title": "legacy"}},
		"notes":   []any{},
	}

	doc := Repair(raw)
	def := entities.DefaultDocument()

	if !reflect.DeepEqual(doc.Filters, def.Filters) {
		t.Fatalf("expected default filters, got %+v", doc.Filters)
	}
	if !reflect.DeepEqual(doc.Tasks, def.Tasks) {
		t.Fatalf("expected default tasks, got %+v", doc.Tasks)
	}
	if !reflect.DeepEqual(doc.Notes, def.Notes) {
		t.Fatalf("expected default notes, got %+v", doc.Notes)
	}
	if !reflect.DeepEqual(doc.Labels, def.Labels) {
		t.Fatalf("expected default labels, got %+v", doc.Labels)
	}
}

func TestRepairDropsMalformedElements(t *testing.T) {
	raw := map[string]any{
		"filters": []any{"a", 3.0, "b"},
		"labels":  []any{"not a label", map[string]any{"id": "a", "title": "A", "color": "red"}},
		"notes":   map[string]any{testToday: "hello", testYesterday: 12.0},
		"tasks": map[string]any{
			testToday: []any{
				map[string]any{
					"id":         "t1",
					"title":      "write",
					"created_at": "2026-10-19T08:00:00Z",
					"completed":  true,
					"labels":     []any{"a", false},
					"pinned":     true,
				},
				"junk",
			},
			testYesterday: "not a bucket",
		},
	}

	doc := Repair(raw)

	if !reflect.DeepEqual(doc.Filters, []string{"a", "b"}) {
		t.Fatalf("unexpected filters: %+v", doc.Filters)
	}
	if len(doc.Labels) != 1 || doc.Labels[0].ID != "a" {
		t.Fatalf("unexpected labels: %+v", doc.Labels)
	}
	if !reflect.DeepEqual(doc.Notes, map[string]string{testToday: "hello"}) {
		t.Fatalf("unexpected notes: %+v", doc.Notes)
	}
	if _, ok := doc.Tasks[testYesterday]; ok {
		t.Fatalf("expected malformed bucket dropped")
	}
	want := entities.Task{
		ID:        "t1",
		Title:     "write",
		CreatedAt: "2026-10-19T08:00:00Z",
		Completed: true,
		Labels:    []string{"a"},
		Pinned:    true,
	}
	if got := doc.Tasks[testToday]; len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Fatalf("unexpected bucket: %+v", got)
	}
}

func TestRepairKeepsEncodedDocument(t *testing.T) {
	doc := entities.DefaultDocument()
	doc.Filters = []string{entities.DefaultWorkLabelID}
	doc.Tasks[testToday] = []entities.Task{{ID: "t1", Title: "a", CreatedAt: "2026-10-19T08:00:00Z", URL: "https://example.com"}}
	doc.Notes[testToday] = "note"
	doc.Migrated = true
	doc.LastMerged = "2026-10-19T09:00:00Z"

	record, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := Repair(record); !reflect.DeepEqual(got, doc) {
		t.Fatalf("expected document unchanged\nwant %+v\ngot  %+v", doc, got)
	}
	if got := Repair(doc); !reflect.DeepEqual(got, doc) {
		t.Fatalf("expected typed document accepted, got %+v", got)
	}
}
