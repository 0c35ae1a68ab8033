// Package remote provides the stores signed-in users' documents are pushed to
// and merged from.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/whattodo/core/internal/infrastructure/config"
	"github.com/whattodo/core/internal/infrastructure/database"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/ports"
)

// Open connects to the configured remote backend. The postgres schema is
// migrated up before the store is returned.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.RemoteStore, error) {
	if log == nil {
		log = logger.NewNop()
	}

	switch cfg.Remote.Backend {
	case "postgres":
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, err
		}
		changed, err := MigrateUp(db, 0)
		if err != nil {
			db.Close()
			return nil, err
		}
		if changed {
			log.Info("Remote schema migrated")
		}
		return NewPostgresStore(db, log), nil
	case "redis":
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

// MemoryStore keeps remote documents in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string][]byte{}}
}

// Get returns the document stored at path, or nil when there is none.
func (s *MemoryStore) Get(ctx context.Context, path string) (map[string]any, error) {
	s.mu.RLock()
	b, ok := s.records[path]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var value map[string]any
	if err := json.Unmarshal(b, &value); err != nil {
		return nil, fmt.Errorf("failed to decode remote record: %w", err)
	}
	return value, nil
}

// Set stores value at path.
func (s *MemoryStore) Set(ctx context.Context, path string, value map[string]any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode remote record: %w", err)
	}
	s.mu.Lock()
	s.records[path] = b
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
