package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/infrastructure/metrics"
	"github.com/whattodo/core/internal/ports"
)

// RemoteSync keeps the local document and the signed-in user's remote copy
// together: it pulls and merges on sign-in and pushes every committed document
// in the background.
type RemoteSync struct {
	store       ports.RemoteStore
	coordinator *Coordinator
	auth        ports.AuthProvider
	pathPrefix  string
	metrics     *metrics.Metrics
	logger      *logger.Logger
	now         func() time.Time

	mu      sync.Mutex
	pending *entities.Document
	wake    chan struct{}
	stops   []func()
	done    chan struct{}
}

// NewRemoteSync creates the remote collaborator. pathPrefix is prepended to
// the user id to form the remote path, e.g. "tasks/".
func NewRemoteSync(store ports.RemoteStore, coordinator *Coordinator, auth ports.AuthProvider, pathPrefix string, m *metrics.Metrics, log *logger.Logger) *RemoteSync {
	if log == nil {
		log = logger.NewNop()
	}
	return &RemoteSync{
		store:       store,
		coordinator: coordinator,
		auth:        auth,
		pathPrefix:  pathPrefix,
		metrics:     m,
		logger:      log.WithComponent("remote_sync"),
		now:         time.Now,
		wake:        make(chan struct{}, 1),
	}
}

// Path returns the remote path holding userID's document.
func (r *RemoteSync) Path(userID string) string {
	return r.pathPrefix + userID
}

// FetchRemote pulls userID's document and turns it into a repaired Document.
func (r *RemoteSync) FetchRemote(ctx context.Context, userID string) (entities.Document, error) {
	flat, err := r.fetchFlat(ctx, userID)
	if err != nil {
		return entities.Document{}, err
	}
	return Repair(flat), nil
}

func (r *RemoteSync) fetchFlat(ctx context.Context, userID string) (map[string]any, error) {
	raw, err := r.store.Get(ctx, r.Path(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote document: %w", err)
	}
	return FlattenRemote(raw), nil
}

// MergeOnSignIn pulls userID's remote document, merges it into the local one
// (remote wins where it has a value), stamps lastMerged and commits the result
// locally. The remote copy is not written here.
func (r *RemoteSync) MergeOnSignIn(ctx context.Context, userID string) (entities.Document, error) {
	if userID == "" {
		return entities.Document{}, entities.ErrNotSignedIn
	}

	flat, err := r.fetchFlat(ctx, userID)
	if err != nil {
		return entities.Document{}, err
	}

	stamp := r.now().UTC().Format(time.RFC3339)
	doc, err := r.coordinator.Commit(ctx, Mutation{
		Action: entities.ActionMergeRemote,
		Apply: func(local entities.Document) (entities.Document, bool) {
			merged := MergeDocuments(local, flat)
			merged.LastMerged = stamp
			return merged, true
		},
	})
	if err != nil {
		return entities.Document{}, fmt.Errorf("failed to commit merged document: %w", err)
	}

	r.logger.WithUserID(userID).Infow("Merged remote document",
		"tasks", doc.TaskCount(),
		"labels", len(doc.Labels),
	)
	return doc, nil
}

// Push writes doc to userID's remote path.
func (r *RemoteSync) Push(ctx context.Context, userID string, doc entities.Document) error {
	record, err := EncodeRemote(doc)
	if err != nil {
		return err
	}
	err = r.store.Set(ctx, r.Path(userID), record)
	r.metrics.ObserveRemotePush(err)
	if err != nil {
		return fmt.Errorf("failed to push document: %w", err)
	}
	return nil
}

// Start subscribes to committed documents and to auth changes. Signing in
// triggers a merge; while signed in, the latest committed document is pushed
// by a single background worker so pushes never overtake each other.
func (r *RemoteSync) Start(ctx context.Context) {
	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return
	}
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	r.stops = append(r.stops,
		r.coordinator.Subscribe(r.enqueue),
		r.auth.Subscribe(func(state ports.AuthState) {
			if state.SignedIn {
				go r.mergeInBackground(ctx, state.UserID)
			}
		}),
	)

	go r.pushLoop(ctx, done)

	if state := r.auth.Current(); state.SignedIn {
		go r.mergeInBackground(ctx, state.UserID)
	}
}

// Stop unsubscribes and stops the push worker.
func (r *RemoteSync) Stop() {
	r.mu.Lock()
	done := r.done
	r.done = nil
	r.mu.Unlock()
	if done == nil {
		return
	}

	for _, stop := range r.stops {
		stop()
	}
	r.stops = nil
	close(done)
}

func (r *RemoteSync) mergeInBackground(ctx context.Context, userID string) {
	if _, err := r.MergeOnSignIn(ctx, userID); err != nil {
		r.logger.WithUserID(userID).WithError(err).Error("Remote merge failed")
	}
}

// enqueue keeps only the most recent document; older unpushed ones are
// superseded by it.
func (r *RemoteSync) enqueue(doc entities.Document) {
	if !r.auth.Current().SignedIn {
		return
	}
	r.mu.Lock()
	r.pending = &doc
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *RemoteSync) pushLoop(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-r.wake:
		}

		r.mu.Lock()
		doc := r.pending
		r.pending = nil
		r.mu.Unlock()
		if doc == nil {
			continue
		}

		state := r.auth.Current()
		if !state.SignedIn {
			continue
		}
		if err := r.Push(ctx, state.UserID, *doc); err != nil {
			r.logger.WithUserID(state.UserID).WithError(err).Warn("Background push failed")
		}
	}
}
