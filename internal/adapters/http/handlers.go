package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/whattodo/core/internal/application/services"
	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/ports"
)

// DocumentHandler serves the task document: tasks, labels, notes, filters and
// whole-document storage operations.
type DocumentHandler struct {
	documents *services.DocumentService
	logger    *logger.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents *services.DocumentService, logger *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger,
	}
}

// GetDocument godoc
// @Summary Get the task document
// @Description Returns the in-memory document, today's day key and the storage usage ratio
// @Tags document
// @Produce json
// @Success 200 {object} DocumentResponse
// @Router /document [get]
func (h *DocumentHandler) GetDocument(c echo.Context) error {
	return c.JSON(http.StatusOK, h.respond(h.documents.Snapshot()))
}

// ReloadDocument godoc
// @Summary Reload the document from storage
// @Description Re-reads storage, repairing and migrating as needed, and relocates pinned tasks into today
// @Tags document
// @Produce json
// @Success 200 {object} DocumentResponse
// @Failure 500 {object} ErrorResponse
// @Router /document/reload [post]
func (h *DocumentHandler) ReloadDocument(c echo.Context) error {
	snap, err := h.documents.Load(c.Request().Context())
	if err != nil {
		h.logger.Errorw("Reload failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, h.respond(snap))
}

// CreateTask godoc
// @Summary Create a task
// @Description Adds a task to the bucket of its creation day (today unless created_at is given)
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} TaskResponse
// @Failure 400 {object} ErrorResponse
// @Router /tasks [post]
func (h *DocumentHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, doc := h.documents.AddTask(req.Task())
	return c.JSON(http.StatusCreated, TaskResponse{Task: task, Document: doc})
}

// UpdateTask godoc
// @Summary Update a task
// @Description Replaces a task. created_at locates the task's bucket.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Task data"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [put]
func (h *DocumentHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc, err := h.documents.UpdateTask(req.Task(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} DocumentResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [delete]
func (h *DocumentHandler) DeleteTask(c echo.Context) error {
	doc, err := h.documents.RemoveTask(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// MoveTaskToToday godoc
// @Summary Move a task into today
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} DocumentResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id}/today [post]
func (h *DocumentHandler) MoveTaskToToday(c echo.Context) error {
	doc, err := h.documents.MoveTaskToToday(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// CreateLabel godoc
// @Summary Create a label
// @Tags labels
// @Accept json
// @Produce json
// @Param request body ports.LabelRequest true "Label data"
// @Success 201 {object} LabelResponse
// @Failure 400 {object} ErrorResponse
// @Router /labels [post]
func (h *DocumentHandler) CreateLabel(c echo.Context) error {
	var req ports.LabelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	label, doc := h.documents.AddLabel(entities.Label{Title: req.Title, Color: req.Color})
	return c.JSON(http.StatusCreated, LabelResponse{Label: label, Document: doc})
}

// UpdateLabel godoc
// @Summary Update a label
// @Tags labels
// @Accept json
// @Produce json
// @Param id path string true "Label ID"
// @Param request body ports.LabelRequest true "Label data"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /labels/{id} [put]
func (h *DocumentHandler) UpdateLabel(c echo.Context) error {
	var req ports.LabelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc, err := h.documents.UpdateLabel(entities.Label{ID: c.Param("id"), Title: req.Title, Color: req.Color})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// DeleteLabel godoc
// @Summary Delete a label
// @Description Removes the label and drops it from the filter selection
// @Tags labels
// @Produce json
// @Param id path string true "Label ID"
// @Success 200 {object} DocumentResponse
// @Failure 404 {object} ErrorResponse
// @Router /labels/{id} [delete]
func (h *DocumentHandler) DeleteLabel(c echo.Context) error {
	doc, err := h.documents.RemoveLabel(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// UpdateNote godoc
// @Summary Set the note for a day
// @Description date is a day key such as "Mon Oct 19 2026", or "today". Blank notes are ignored.
// @Tags notes
// @Accept json
// @Produce json
// @Param date path string true "Day key"
// @Param request body ports.NoteRequest true "Note"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} ErrorResponse
// @Router /notes/{date} [put]
func (h *DocumentHandler) UpdateNote(c echo.Context) error {
	date, err := h.dayParam(c)
	if err != nil {
		return err
	}

	var req ports.NoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	doc := h.documents.UpdateNote(req.Note, date)
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// UpdateFilters godoc
// @Summary Set the label filter selection
// @Description Unknown label ids are dropped
// @Tags filters
// @Accept json
// @Produce json
// @Param request body ports.FiltersRequest true "Label ids"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} ErrorResponse
// @Router /filters [put]
func (h *DocumentHandler) UpdateFilters(c echo.Context) error {
	var req ports.FiltersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc := h.documents.UpdateFilters(req.Filters)
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// ClearStorage godoc
// @Summary Reset to the default document
// @Tags storage
// @Produce json
// @Success 200 {object} DocumentResponse
// @Failure 500 {object} ErrorResponse
// @Router /storage [delete]
func (h *DocumentHandler) ClearStorage(c echo.Context) error {
	doc, err := h.documents.Clear(c.Request().Context())
	if err != nil {
		h.logger.Errorw("Clear failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

// UploadStorage godoc
// @Summary Replace the document
// @Description Replaces the whole document with the uploaded one after repairing it
// @Tags storage
// @Accept json
// @Produce json
// @Param request body object true "Document"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /storage/upload [post]
func (h *DocumentHandler) UploadStorage(c echo.Context) error {
	var raw any
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	doc, err := h.documents.Upload(c.Request().Context(), raw)
	if err != nil {
		h.logger.Errorw("Upload failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, h.respondWith(doc))
}

func (h *DocumentHandler) respond(snap ports.Snapshot) DocumentResponse {
	return DocumentResponse{
		Document:   snap.Document,
		Today:      h.documents.Engine().Today(),
		UsageRatio: snap.UsageRatio,
	}
}

// respondWith pairs doc with the last known usage ratio.
func (h *DocumentHandler) respondWith(doc entities.Document) DocumentResponse {
	snap := h.documents.Snapshot()
	snap.Document = doc
	return h.respond(snap)
}

func (h *DocumentHandler) dayParam(c echo.Context) (string, error) {
	date, err := url.PathUnescape(c.Param("date"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid date")
	}
	if strings.EqualFold(date, "today") {
		return h.documents.Engine().Today(), nil
	}
	// Parse ignores the weekday, so the key must also round-trip.
	if t, err := time.Parse(entities.DayKeyLayout, date); err != nil || t.Format(entities.DayKeyLayout) != date {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid date, expected a day key like \""+h.documents.Engine().Today()+"\"")
	}
	return date, nil
}

// SessionHandler signs the remote-sync user in and out.
type SessionHandler struct {
	auth   *services.AuthService
	remote *services.RemoteSync
	logger *logger.Logger
}

// NewSessionHandler creates a new session handler. remote is nil when remote
// sync is disabled.
func NewSessionHandler(auth *services.AuthService, remote *services.RemoteSync, logger *logger.Logger) *SessionHandler {
	return &SessionHandler{
		auth:   auth,
		remote: remote,
		logger: logger,
	}
}

// SignIn godoc
// @Summary Sign in for remote sync
// @Description Validates the session token; the remote copy is merged in the background
// @Tags session
// @Accept json
// @Produce json
// @Param request body ports.SessionRequest false "Session token, or use the Authorization header"
// @Success 200 {object} ports.AuthState
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /session [post]
func (h *SessionHandler) SignIn(c echo.Context) error {
	if h.remote == nil {
		return entities.ErrRemoteDisabled
	}

	var req ports.SessionRequest
	if bearer := bearerToken(c); bearer != "" {
		req.Token = bearer
	} else if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	state, err := h.auth.SignIn(req.Token)
	if err != nil {
		h.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	h.logger.LogUserAction(state.UserID, "sign_in", nil)
	return c.JSON(http.StatusOK, state)
}

// SignOut godoc
// @Summary Sign out of remote sync
// @Tags session
// @Produce json
// @Success 200 {object} ports.AuthState
// @Router /session [delete]
func (h *SessionHandler) SignOut(c echo.Context) error {
	previous := h.auth.Current()
	h.auth.SignOut()
	if previous.SignedIn {
		h.logger.LogUserAction(previous.UserID, "sign_out", nil)
	}
	return c.JSON(http.StatusOK, h.auth.Current())
}

// GetSession godoc
// @Summary Current session state
// @Tags session
// @Produce json
// @Success 200 {object} ports.AuthState
// @Router /session [get]
func (h *SessionHandler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.auth.Current())
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return strings.TrimSpace(token)
}

// Response types

type DocumentResponse struct {
	Document   entities.Document `json:"document"`
	Today      string            `json:"today"`
	UsageRatio float64           `json:"usage_ratio"`
}

type TaskResponse struct {
	Task     entities.Task     `json:"task"`
	Document entities.Document `json:"document"`
}

type LabelResponse struct {
	Label    entities.Label    `json:"label"`
	Document entities.Document `json:"document"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
