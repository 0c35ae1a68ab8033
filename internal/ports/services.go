package ports

import (
	"github.com/whattodo/core/internal/domain/entities"
)

// AuthState is what the auth collaborator tells the core about the session.
type AuthState struct {
	UserID   string `json:"user_id"`
	SignedIn bool   `json:"signed_in"`
}

// AuthProvider yields auth state changes to subscribers.
type AuthProvider interface {
	Current() AuthState
	Subscribe(fn func(AuthState)) (unsubscribe func())
}

// Snapshot is a loaded document together with its storage usage.
type Snapshot struct {
	Document   entities.Document `json:"document"`
	UsageRatio float64           `json:"usage_ratio"`
}

// Request/Response Types

// Task related types
type CreateTaskRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"omitempty,max=10000"`
	URL         string   `json:"url" validate:"omitempty,url"`
	CreatedAt   string   `json:"created_at"`
	Labels      []string `json:"labels" validate:"omitempty,dive,required"`
	Pinned      bool     `json:"pinned"`
}

// Task builds the entity handed to the mutation engine.
func (r CreateTaskRequest) Task() entities.Task {
	return entities.Task{
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		CreatedAt:   r.CreatedAt,
		Labels:      r.Labels,
		Pinned:      r.Pinned,
	}
}

// UpdateTaskRequest carries the full task; created_at locates its bucket.
// Title is deliberately not required: edits may empty it.
type UpdateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description" validate:"omitempty,max=10000"`
	URL         string   `json:"url" validate:"omitempty,url"`
	CreatedAt   string   `json:"created_at" validate:"required"`
	Completed   bool     `json:"completed"`
	CompletedAt string   `json:"completed_at"`
	Labels      []string `json:"labels" validate:"omitempty,dive,required"`
	Pinned      bool     `json:"pinned"`
}

// Task builds the entity handed to the mutation engine.
func (r UpdateTaskRequest) Task(id string) entities.Task {
	return entities.Task{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		CreatedAt:   r.CreatedAt,
		Completed:   r.Completed,
		CompletedAt: r.CompletedAt,
		Labels:      r.Labels,
		Pinned:      r.Pinned,
	}
}

// Label related types
type LabelRequest struct {
	Title string `json:"title" validate:"required,max=100"`
	Color string `json:"color" validate:"required,max=64"`
}

// Note and filter types
type NoteRequest struct {
	Note string `json:"note"`
}

type FiltersRequest struct {
	Filters []string `json:"filters" validate:"omitempty,dive,required"`
}

// Session types
type SessionRequest struct {
	Token string `json:"token" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
