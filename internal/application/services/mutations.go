package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whattodo/core/internal/domain/entities"
)

// Engine holds the pure document operations. Every method returns a new
// Document and leaves its argument untouched. The clock, location and id
// source are injectable so tests are deterministic.
type Engine struct {
	now   func() time.Time
	loc   *time.Location
	newID func() string
}

// NewEngine creates an engine. nil arguments fall back to the wall clock,
// time.Local and random uuids.
func NewEngine(loc *time.Location, now func() time.Time, newID func() string) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	return &Engine{now: now, loc: loc, newID: newID}
}

// Location is the zone day keys are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Today returns the day key for the current instant.
func (e *Engine) Today() string {
	return entities.DayKey(e.now(), e.loc)
}

// Labels

// NewLabel assigns a fresh id to label.
func (e *Engine) NewLabel(label entities.Label) entities.Label {
	label.ID = e.newID()
	return label
}

// AddLabel appends label under a fresh id.
func (e *Engine) AddLabel(doc entities.Document, label entities.Label) entities.Document {
	return e.InsertLabel(doc, e.NewLabel(label))
}

// InsertLabel appends a label that already carries its id.
func (e *Engine) InsertLabel(doc entities.Document, label entities.Label) entities.Document {
	doc.Labels = appendItem(doc.Labels, label)
	return doc
}

// UpdateLabel replaces the label with the same id. Unknown ids are a no-op.
func (e *Engine) UpdateLabel(doc entities.Document, label entities.Label) entities.Document {
	doc.Labels, _ = updateItem(doc.Labels, label)
	return doc
}

// RemoveLabel drops the label and any filter referencing it.
func (e *Engine) RemoveLabel(doc entities.Document, id string) entities.Document {
	doc.Labels, _ = removeItem(doc.Labels, id)
	return e.UpdateFilters(doc, doc.Filters)
}

// Tasks

// NewTask prepares a task for insertion: fresh id, not completed, and a
// created_at of now when none (or an unreadable one) was given.
func (e *Engine) NewTask(task entities.Task) entities.Task {
	task.ID = e.newID()
	task.Completed = false
	task.CompletedAt = ""
	if _, ok := entities.DayKeyFor(task.CreatedAt, e.loc); !ok {
		task.CreatedAt = entities.FormatTimestamp(e.now())
	}
	task.Labels = append([]string(nil), task.Labels...)
	return task
}

// AddTask prepends task, under a fresh id, into the bucket of its created_at.
func (e *Engine) AddTask(doc entities.Document, task entities.Task) entities.Document {
	return e.InsertTask(doc, e.NewTask(task))
}

// InsertTask prepends a prepared task into the bucket of its created_at.
func (e *Engine) InsertTask(doc entities.Document, task entities.Task) entities.Document {
	day, ok := entities.DayKeyFor(task.CreatedAt, e.loc)
	if !ok {
		day = e.Today()
	}
	doc.Tasks = copyBuckets(doc.Tasks)
	doc.Tasks[day] = prependItem(doc.Tasks[day], task)
	return doc
}

// UpdateTask replaces the stored task with the same id, keeping its position.
// completed_at is stamped when completed turns true, cleared when it turns
// false, and carried over otherwise. The title is taken as given.
func (e *Engine) UpdateTask(doc entities.Document, task entities.Task) entities.Document {
	day, idx := e.locateTask(doc, task)
	if idx < 0 {
		return doc
	}

	existing := doc.Tasks[day][idx]
	switch {
	case task.Completed && !existing.Completed:
		task.CompletedAt = entities.FormatTimestamp(e.now())
	case !task.Completed && existing.Completed:
		task.CompletedAt = ""
	default:
		task.CompletedAt = existing.CompletedAt
	}
	task.Labels = append([]string(nil), task.Labels...)

	doc.Tasks = copyBuckets(doc.Tasks)
	doc.Tasks[day], _ = updateItem(doc.Tasks[day], task)
	return doc
}

// RemoveTask deletes the task with the same id. A bucket left empty is
// removed from the map.
func (e *Engine) RemoveTask(doc entities.Document, task entities.Task) entities.Document {
	day, idx := e.locateTask(doc, task)
	if idx < 0 {
		return doc
	}
	return removeFromBucket(doc, day, task.ID)
}

// MoveTaskToToday takes the stored task out of its bucket, stamps created_at
// with now and prepends it into today's bucket.
func (e *Engine) MoveTaskToToday(doc entities.Document, task entities.Task) entities.Document {
	day, idx := e.locateTask(doc, task)
	if idx < 0 {
		return doc
	}

	moved := doc.Tasks[day][idx]
	moved.CreatedAt = entities.FormatTimestamp(e.now())

	doc = removeFromBucket(doc, day, moved.ID)
	today := e.Today()
	doc.Tasks[today] = prependItem(doc.Tasks[today], moved)
	return doc
}

// PinnedOutsideToday lists the pinned tasks stored under an earlier day.
func (e *Engine) PinnedOutsideToday(doc entities.Document) []entities.Task {
	var out []entities.Task
	for _, t := range doc.TasksBefore(e.Today()) {
		if t.Pinned {
			out = append(out, t)
		}
	}
	return out
}

// RelocatePinned moves every pinned task from earlier days into today. changed
// is false when there was nothing to move.
func (e *Engine) RelocatePinned(doc entities.Document) (entities.Document, bool) {
	pinned := e.PinnedOutsideToday(doc)
	for _, t := range pinned {
		doc = e.MoveTaskToToday(doc, t)
	}
	return doc, len(pinned) > 0
}

// locateTask finds the task's bucket from its created_at, falling back to a
// scan of every bucket when created_at is unreadable or points elsewhere.
func (e *Engine) locateTask(doc entities.Document, task entities.Task) (string, int) {
	if day, ok := entities.DayKeyFor(task.CreatedAt, e.loc); ok {
		if idx := indexOf(doc.Tasks[day], task.ID); idx >= 0 {
			return day, idx
		}
	}
	for day, bucket := range doc.Tasks {
		if idx := indexOf(bucket, task.ID); idx >= 0 {
			return day, idx
		}
	}
	return "", -1
}

// Notes and filters

// UpdateNote stores note under date. changed is false, and doc is returned
// as is, when both the new and the stored note are blank or when the note is
// identical to the stored one.
func (e *Engine) UpdateNote(doc entities.Document, note, date string) (entities.Document, bool) {
	existing := doc.Notes[date]
	if strings.TrimSpace(note) == "" && existing == "" {
		return doc, false
	}
	if note == existing {
		return doc, false
	}

	notes := make(map[string]string, len(doc.Notes)+1)
	for day, n := range doc.Notes {
		notes[day] = n
	}
	notes[date] = note
	doc.Notes = notes
	return doc, true
}

// UpdateFilters stores ids, keeping only those naming an existing label.
func (e *Engine) UpdateFilters(doc entities.Document, ids []string) entities.Document {
	filters := make([]string, 0, len(ids))
	for _, id := range ids {
		if doc.HasLabel(id) {
			filters = append(filters, id)
		}
	}
	doc.Filters = filters
	return doc
}

// CleanFilters drops filters whose label no longer exists.
func (e *Engine) CleanFilters(doc entities.Document) (entities.Document, bool) {
	cleaned := e.UpdateFilters(doc, doc.Filters)
	return cleaned, len(cleaned.Filters) != len(doc.Filters)
}

func copyBuckets(tasks map[string][]entities.Task) map[string][]entities.Task {
	out := make(map[string][]entities.Task, len(tasks)+1)
	for day, bucket := range tasks {
		out[day] = bucket
	}
	return out
}

func removeFromBucket(doc entities.Document, day, id string) entities.Document {
	doc.Tasks = copyBuckets(doc.Tasks)
	bucket, _ := removeItem(doc.Tasks[day], id)
	if len(bucket) == 0 {
		delete(doc.Tasks, day)
	} else {
		doc.Tasks[day] = bucket
	}
	return doc
}
