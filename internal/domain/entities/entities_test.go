package entities

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDayKeyUsesCanonicalForm(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	ts := time.Date(2026, time.October, 18, 23, 30, 0, 0, time.UTC)

	if got := DayKey(ts, loc); got != "Mon Oct 19 2026" {
		t.Fatalf("expected local day to roll over, got %q", got)
	}
	if got := DayKey(ts, time.UTC); got != "Sun Oct 18 2026" {
		t.Fatalf("expected UTC day, got %q", got)
	}
}

func TestDayKeyForAcceptsStoredForms(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2026-10-19T08:00:00Z", want: "Mon Oct 19 2026", ok: true},
		{in: "2026-10-19T08:00:00.123456789Z", want: "Mon Oct 19 2026", ok: true},
		{in: "2026-10-19", want: "Mon Oct 19 2026", ok: true},
		{in: "Mon Oct 19 2026", want: "Mon Oct 19 2026", ok: true},
		{in: "03/02", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := DayKeyFor(tt.in, time.UTC)
		if ok != tt.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tt.in, tt.ok, ok)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestCloneSharesNothing(t *testing.T) {
	doc := DefaultDocument()
	doc.Tasks["Mon Oct 19 2026"] = []Task{{ID: "1", Title: "a", Labels: []string{"x"}}}
	doc.Notes["Mon Oct 19 2026"] = "note"
	doc.Filters = []string{DefaultWorkLabelID}

	clone := doc.Clone()
	if !reflect.DeepEqual(doc, clone) {
		t.Fatalf("expected clone to equal original")
	}

	clone.Tasks["Mon Oct 19 2026"][0].Labels[0] = "y"
	clone.Labels[0].Title = "changed"
	clone.Filters[0] = "other"
	clone.Notes["Mon Oct 19 2026"] = "changed"

	if doc.Tasks["Mon Oct 19 2026"][0].Labels[0] != "x" {
		t.Fatalf("task labels leaked through clone")
	}
	if doc.Labels[0].Title != "Work" || doc.Filters[0] != DefaultWorkLabelID || doc.Notes["Mon Oct 19 2026"] != "note" {
		t.Fatalf("clone mutated original: %+v", doc)
	}
}

func TestFindTaskReportsNotFound(t *testing.T) {
	doc := DefaultDocument()
	if _, _, err := doc.FindTask("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTasksBeforeSkipsToday(t *testing.T) {
	doc := DefaultDocument()
	doc.Tasks["Mon Oct 19 2026"] = []Task{{ID: "today"}}
	doc.Tasks["Sat Oct 17 2026"] = []Task{{ID: "older"}}
	doc.Tasks["Sun Oct 18 2026"] = []Task{{ID: "yesterday"}}

	got := doc.TasksBefore("Mon Oct 19 2026")
	if len(got) != 2 || got[0].ID != "older" || got[1].ID != "yesterday" {
		t.Fatalf("unexpected tasks: %+v", got)
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	base := errors.New("quota exceeded")
	err := NewStorageError("local", "set", base)

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error")
	}
	if NewStorageError("local", "set", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
