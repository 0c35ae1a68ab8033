package ports

import (
	"context"
)

// StorageArea is a key-value object store holding one record, the serialized
// Document. Platform failures are reported as *entities.StorageError; an empty
// area is an empty map, never an error.
type StorageArea interface {
	Name() string
	Get(ctx context.Context) (map[string]any, error)
	// Set replaces the whole record.
	Set(ctx context.Context, record map[string]any) error
	Clear(ctx context.Context) error
	QuotaBytes() int64
}

// RemoteStore persists documents for signed-in users under a path such as
// "tasks/<userID>". Get returns nil when nothing is stored at path.
type RemoteStore interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	Set(ctx context.Context, path string, value map[string]any) error
	Close() error
}
