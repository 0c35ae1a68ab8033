package services

import (
	"context"
	"fmt"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/ports"
)

// DocumentService is what the HTTP handlers and CLI commands talk to. Each
// operation turns an engine call into a Mutation and hands it to the
// coordinator; the returned document is the caller's view right away, while
// the write completes in the background.
type DocumentService struct {
	engine      *Engine
	coordinator *Coordinator
	logger      *logger.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(engine *Engine, coordinator *Coordinator, log *logger.Logger) *DocumentService {
	if log == nil {
		log = logger.NewNop()
	}
	return &DocumentService{
		engine:      engine,
		coordinator: coordinator,
		logger:      log.WithComponent("documents"),
	}
}

// Engine exposes the mutation engine, e.g. for computing today's key.
func (s *DocumentService) Engine() *Engine {
	return s.engine
}

// Load reads the document from storage and then relocates pinned tasks left
// on earlier days into today.
func (s *DocumentService) Load(ctx context.Context) (ports.Snapshot, error) {
	snap, err := s.coordinator.GetData(ctx)
	if err != nil {
		return snap, err
	}

	if len(s.engine.PinnedOutsideToday(snap.Document)) > 0 {
		snap.Document = s.coordinator.Apply(Mutation{
			Action: entities.ActionMoveTask,
			Apply:  s.engine.RelocatePinned,
		})
	}
	return snap, nil
}

// Stale reports whether storage holds a document other than the in-memory one.
func (s *DocumentService) Stale(ctx context.Context) (bool, error) {
	return s.coordinator.Stale(ctx)
}

// Snapshot returns the in-memory document without touching storage.
func (s *DocumentService) Snapshot() ports.Snapshot {
	return s.coordinator.Snapshot()
}

// Subscribe registers fn to receive committed documents.
func (s *DocumentService) Subscribe(fn func(entities.Document)) func() {
	return s.coordinator.Subscribe(fn)
}

// Busy reports whether a write is in flight.
func (s *DocumentService) Busy() bool {
	return s.coordinator.Busy()
}

// QueueLen returns the number of mutations waiting to be written.
func (s *DocumentService) QueueLen() int {
	return s.coordinator.QueueLen()
}

// Wait blocks until every issued mutation has been written.
func (s *DocumentService) Wait(ctx context.Context) error {
	return s.coordinator.Wait(ctx)
}

// Tasks

// AddTask creates a task and returns it with its assigned id.
func (s *DocumentService) AddTask(task entities.Task) (entities.Task, entities.Document) {
	prepared := s.engine.NewTask(task)
	doc := s.coordinator.Apply(Mutation{
		Action: entities.ActionAddTask,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.InsertTask(d, prepared), true
		},
	})
	s.logger.Debugw("Task added", "task_id", prepared.ID)
	return prepared, doc
}

// UpdateTask replaces a stored task.
func (s *DocumentService) UpdateTask(task entities.Task) (entities.Document, error) {
	if _, _, err := s.coordinator.Current().FindTask(task.ID); err != nil {
		return entities.Document{}, err
	}
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionUpdateTask,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.UpdateTask(d, task), true
		},
	}), nil
}

// SetCompleted marks a task done or not done.
func (s *DocumentService) SetCompleted(id string, completed bool) (entities.Document, error) {
	return s.editTask(id, func(t *entities.Task) { t.Completed = completed })
}

// SetPinned pins or unpins a task.
func (s *DocumentService) SetPinned(id string, pinned bool) (entities.Document, error) {
	return s.editTask(id, func(t *entities.Task) { t.Pinned = pinned })
}

// editTask applies edit to the task as stored when the mutation runs, so
// edits queued behind one another compose.
func (s *DocumentService) editTask(id string, edit func(*entities.Task)) (entities.Document, error) {
	if _, _, err := s.coordinator.Current().FindTask(id); err != nil {
		return entities.Document{}, err
	}
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionUpdateTask,
		Apply: func(d entities.Document) (entities.Document, bool) {
			task, _, err := d.FindTask(id)
			if err != nil {
				return d, false
			}
			edit(&task)
			return s.engine.UpdateTask(d, task), true
		},
	}), nil
}

// RemoveTask deletes a task by id.
func (s *DocumentService) RemoveTask(id string) (entities.Document, error) {
	task, _, err := s.coordinator.Current().FindTask(id)
	if err != nil {
		return entities.Document{}, err
	}
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionRemoveTask,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.RemoveTask(d, task), true
		},
	}), nil
}

// MoveTaskToToday moves a task into today's bucket.
func (s *DocumentService) MoveTaskToToday(id string) (entities.Document, error) {
	task, _, err := s.coordinator.Current().FindTask(id)
	if err != nil {
		return entities.Document{}, err
	}
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionMoveTask,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.MoveTaskToToday(d, task), true
		},
	}), nil
}

// Labels

// AddLabel creates a label and returns it with its assigned id.
func (s *DocumentService) AddLabel(label entities.Label) (entities.Label, entities.Document) {
	prepared := s.engine.NewLabel(label)
	doc := s.coordinator.Apply(Mutation{
		Action: entities.ActionAddLabel,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.InsertLabel(d, prepared), true
		},
	})
	return prepared, doc
}

// UpdateLabel replaces a stored label.
func (s *DocumentService) UpdateLabel(label entities.Label) (entities.Document, error) {
	if _, err := s.coordinator.Current().FindLabel(label.ID); err != nil {
		return entities.Document{}, err
	}
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionUpdateLabel,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.UpdateLabel(d, label), true
		},
	}), nil
}

// RemoveLabel deletes a label and any filter on it.
func (s *DocumentService) RemoveLabel(id string) (entities.Document, error) {
	if _, err := s.coordinator.Current().FindLabel(id); err != nil {
		return entities.Document{}, err
	}
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionRemoveLabel,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.RemoveLabel(d, id), true
		},
	}), nil
}

// Notes and filters

// UpdateNote stores the note for date. Blank or unchanged notes are not
// written.
func (s *DocumentService) UpdateNote(note, date string) entities.Document {
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionUpdateNote,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.UpdateNote(d, note, date)
		},
	})
}

// UpdateFilters stores the filter selection, dropping unknown label ids.
func (s *DocumentService) UpdateFilters(ids []string) entities.Document {
	return s.coordinator.Apply(Mutation{
		Action: entities.ActionUpdateFilters,
		Apply: func(d entities.Document) (entities.Document, bool) {
			return s.engine.UpdateFilters(d, ids), true
		},
	})
}

// Whole-document operations

// Clear resets storage to the default document.
func (s *DocumentService) Clear(ctx context.Context) (entities.Document, error) {
	doc, err := s.coordinator.Persist(ctx, entities.DefaultDocument(), entities.ActionClearData)
	if err != nil {
		return entities.Document{}, fmt.Errorf("failed to clear data: %w", err)
	}
	s.logger.Info("Document cleared")
	return doc, nil
}

// Upload replaces the document with raw after repairing it. raw is typically a
// decoded JSON export.
func (s *DocumentService) Upload(ctx context.Context, raw any) (entities.Document, error) {
	doc := Repair(raw)
	doc, _ = s.engine.CleanFilters(doc)
	doc, err := s.coordinator.Persist(ctx, doc, entities.ActionUploadData)
	if err != nil {
		return entities.Document{}, fmt.Errorf("failed to upload data: %w", err)
	}
	s.logger.Infow("Document uploaded", "tasks", doc.TaskCount())
	return doc, nil
}
