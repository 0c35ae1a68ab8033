package entities

import (
	"errors"
	"fmt"
	"sort"
)

// Common errors
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrLabelNotFound  = errors.New("label not found")
	ErrInvalidToken   = errors.New("invalid session token")
	ErrNotSignedIn    = errors.New("no user signed in")
	ErrRemoteDisabled = errors.New("remote sync is disabled")
)

// Action tags every committed write so logs and metrics can tell them apart.
type Action string

const (
	ActionAddTask    Action = "ADD_TASK"
	ActionRemoveTask Action = "REMOVE_TASK"
	ActionUpdateTask Action = "UPDATE_TASK"
	ActionMoveTask   Action = "MOVE_TASK"

	ActionAddLabel    Action = "ADD_LABEL"
	ActionRemoveLabel Action = "REMOVE_LABEL"
	ActionUpdateLabel Action = "UPDATE_LABEL"

	ActionUpdateNote    Action = "UPDATE_NOTE"
	ActionUpdateFilters Action = "UPDATE_FILTERS"

	ActionClearData   Action = "CLEAR_DATA"
	ActionUploadData  Action = "UPLOAD_DATA"
	ActionMigrateData Action = "MIGRATE_DATA_FROM_SYNC"
	ActionCleanData   Action = "CLEAN_DATA"
	ActionMergeRemote Action = "MERGE_REMOTE_DATA"
)

// Label is a user-defined tag.
type Label struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// GetID satisfies the id constraint used by the generic list operations.
func (l Label) GetID() string { return l.ID }

// Task is a unit of work bucketed by the day it was created on.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	CreatedAt   string   `json:"created_at"`
	Completed   bool     `json:"completed"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Pinned      bool     `json:"pinned,omitempty"`
}

// GetID satisfies the id constraint used by the generic list operations.
func (t Task) GetID() string { return t.ID }

// HasLabel reports whether the task carries the label id.
func (t Task) HasLabel(id string) bool {
	for _, l := range t.Labels {
		if l == id {
			return true
		}
	}
	return false
}

// SortedLabels returns the label ids in lexicographic order without touching
// the receiver.
func (t Task) SortedLabels() []string {
	out := append([]string(nil), t.Labels...)
	sort.Strings(out)
	return out
}

// Document is the whole persisted application state. Values are treated as
// immutable snapshots: operations build a new Document instead of editing one.
type Document struct {
	Filters    []string          `json:"filters"`
	Tasks      map[string][]Task `json:"tasks"`
	Notes      map[string]string `json:"notes"`
	Labels     []Label           `json:"labels"`
	Migrated   bool              `json:"migrated,omitempty"`
	LastMerged string            `json:"lastMerged,omitempty"`
}

// Default label ids. They are fixed so repeated default documents compare equal.
const (
	DefaultWorkLabelID     = "label-work"
	DefaultPersonalLabelID = "label-personal"
)

// DefaultDocument returns the document used when storage is empty or unusable.
func DefaultDocument() Document {
	return Document{
		Filters: []string{},
		Tasks:   map[string][]Task{},
		Notes:   map[string]string{},
		Labels: []Label{
			{ID: DefaultWorkLabelID, Title: "Work", Color: "#70a1ff"},
			{ID: DefaultPersonalLabelID, Title: "Personal", Color: "#7bed9f"},
		},
	}
}

// LabelsByID indexes labels by id.
func (d Document) LabelsByID() map[string]Label {
	out := make(map[string]Label, len(d.Labels))
	for _, l := range d.Labels {
		out[l.ID] = l
	}
	return out
}

// HasLabel reports whether a label with the id exists.
func (d Document) HasLabel(id string) bool {
	for _, l := range d.Labels {
		if l.ID == id {
			return true
		}
	}
	return false
}

// FindTask looks a task up by id across every bucket.
func (d Document) FindTask(id string) (Task, string, error) {
	for day, bucket := range d.Tasks {
		for _, t := range bucket {
			if t.ID == id {
				return t, day, nil
			}
		}
	}
	return Task{}, "", fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// FindLabel looks a label up by id.
func (d Document) FindLabel(id string) (Label, error) {
	for _, l := range d.Labels {
		if l.ID == id {
			return l, nil
		}
	}
	return Label{}, fmt.Errorf("%w: %s", ErrLabelNotFound, id)
}

// TasksFor returns the bucket for a day key. The slice must not be modified.
func (d Document) TasksFor(dayKey string) []Task {
	return d.Tasks[dayKey]
}

// TasksBefore returns every task that is not in the given day's bucket,
// ordered by day key for stable output.
func (d Document) TasksBefore(dayKey string) []Task {
	days := make([]string, 0, len(d.Tasks))
	for day := range d.Tasks {
		if day != dayKey {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	var out []Task
	for _, day := range days {
		out = append(out, d.Tasks[day]...)
	}
	return out
}

// TaskCount returns the number of tasks across all buckets.
func (d Document) TaskCount() int {
	n := 0
	for _, bucket := range d.Tasks {
		n += len(bucket)
	}
	return n
}

// Clone returns a deep copy that shares nothing with the receiver.
func (d Document) Clone() Document {
	out := Document{
		Filters:    append([]string{}, d.Filters...),
		Tasks:      make(map[string][]Task, len(d.Tasks)),
		Notes:      make(map[string]string, len(d.Notes)),
		Labels:     append([]Label{}, d.Labels...),
		Migrated:   d.Migrated,
		LastMerged: d.LastMerged,
	}
	for day, bucket := range d.Tasks {
		copied := make([]Task, len(bucket))
		for i, t := range bucket {
			t.Labels = append([]string(nil), t.Labels...)
			copied[i] = t
		}
		out.Tasks[day] = copied
	}
	for day, note := range d.Notes {
		out.Notes[day] = note
	}
	return out
}

// StorageError is a platform-level failure reported by a storage area or the
// remote store. It is never produced for merely absent data.
type StorageError struct {
	Area string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Area, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err, returning nil when err is nil.
func NewStorageError(area, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Area: area, Op: op, Err: err}
}
