package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/whattodo/core/internal/domain/entities"
)

type testRemote struct {
	mu      sync.Mutex
	records map[string]map[string]any
	sets    int
	getErr  error
}

func newTestRemote() *testRemote {
	return &testRemote{records: map[string]map[string]any{}}
}

func (r *testRemote) Get(ctx context.Context, path string) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.records[path]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (r *testRemote) Set(ctx context.Context, path string, value map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[path] = copyRecord(value)
	r.sets++
	return nil
}

func (r *testRemote) Close() error { return nil }

func (r *testRemote) setCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sets
}

func TestMergeOnSignInCommitsLocally(t *testing.T) {
	e := newTestEngine()
	area := newTestArea("local")
	c := NewCoordinator(area, nil, e, 0, nil, nil)
	remote := newTestRemote()

	remoteDoc := entities.DefaultDocument()
	remoteDoc.Notes[testToday] = "from another device"
	encoded, err := EncodeRemote(remoteDoc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	remote.records["tasks/user-1"] = encoded

	c.Apply(addTaskMutation(e, "local task"))
	waitIdle(t, c)

	rs := NewRemoteSync(remote, c, newTestAuth(), "tasks/", nil, nil)
	rs.now = func() time.Time { return testNow }

	merged, err := rs.MergeOnSignIn(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Notes[testToday] != "from another device" {
		t.Fatalf("expected remote note merged, got %+v", merged.Notes)
	}
	if len(merged.Tasks[testToday]) != 1 {
		t.Fatalf("expected local task kept, got %+v", merged.Tasks)
	}
	if merged.LastMerged != "2026-10-19T10:00:00Z" {
		t.Fatalf("expected lastMerged stamped, got %q", merged.LastMerged)
	}
	if got := area.stored(t); got.LastMerged == "" || got.Notes[testToday] == "" {
		t.Fatalf("expected merged document persisted, got %+v", got)
	}
	if remote.setCount() != 0 {
		t.Fatalf("merge must not write the remote copy")
	}
}

func TestMergeOnSignInErrors(t *testing.T) {
	c := NewCoordinator(newTestArea("local"), nil, newTestEngine(), 0, nil, nil)
	remote := newTestRemote()
	rs := NewRemoteSync(remote, c, newTestAuth(), "tasks/", nil, nil)

	if _, err := rs.MergeOnSignIn(context.Background(), ""); !errors.Is(err, entities.ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	remote.getErr = errBoom
	if _, err := rs.MergeOnSignIn(context.Background(), "user-1"); !errors.Is(err, errBoom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestFetchRemoteOfUnknownUserIsDefault(t *testing.T) {
	c := NewCoordinator(newTestArea("local"), nil, newTestEngine(), 0, nil, nil)
	rs := NewRemoteSync(newTestRemote(), c, newTestAuth(), "tasks/", nil, nil)

	doc, err := rs.FetchRemote(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.TaskCount() != 0 || len(doc.Labels) != 2 {
		t.Fatalf("expected default document, got %+v", doc)
	}
}

func TestSignInMergesAndPushesInBackground(t *testing.T) {
	e := newTestEngine()
	c := NewCoordinator(newTestArea("local"), nil, e, 0, nil, nil)
	remote := newTestRemote()
	auth := newTestAuth()

	rs := NewRemoteSync(remote, c, auth, "tasks/", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs.Start(ctx)
	defer rs.Stop()

	c.Apply(addTaskMutation(e, "before sign in"))
	waitIdle(t, c)
	if remote.setCount() != 0 {
		t.Fatalf("expected no push while signed out")
	}

	token, _ := auth.IssueToken("user-1")
	if _, err := auth.SignIn(token); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	eventually(t, "merge commit", func() bool { return c.Current().LastMerged != "" })

	c.Apply(addTaskMutation(e, "after sign in"))
	eventually(t, "remote push", func() bool {
		doc, err := rs.FetchRemote(context.Background(), "user-1")
		return err == nil && len(doc.Tasks[testToday]) == 2
	})
}
