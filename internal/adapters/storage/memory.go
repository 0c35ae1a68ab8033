package storage

import (
	"context"
	"sync"

	"github.com/whattodo/core/internal/domain/entities"
)

// MemoryArea keeps the record in process memory. Values are stored encoded,
// so callers never share maps with the area.
type MemoryArea struct {
	name  string
	quota int64

	mu     sync.RWMutex
	fields map[string][]byte
}

// NewMemoryArea creates an empty in-memory area.
func NewMemoryArea(name string, quota int64) *MemoryArea {
	return &MemoryArea{name: name, quota: quota, fields: map[string][]byte{}}
}

// Name returns the area name.
func (a *MemoryArea) Name() string { return a.name }

// QuotaBytes returns the area quota.
func (a *MemoryArea) QuotaBytes() int64 { return a.quota }

// Get decodes every stored field.
func (a *MemoryArea) Get(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, entities.NewStorageError(a.name, "get", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	record := make(map[string]any, len(a.fields))
	for key, b := range a.fields {
		v, err := decodeField(a.name, key, b)
		if err != nil {
			return nil, err
		}
		record[key] = v
	}
	return record, nil
}

// Set replaces the stored record.
func (a *MemoryArea) Set(ctx context.Context, record map[string]any) error {
	if err := ctx.Err(); err != nil {
		return entities.NewStorageError(a.name, "set", err)
	}
	fields, err := encodeFields(a.name, a.quota, record)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.fields = fields
	a.mu.Unlock()
	return nil
}

// Clear removes every stored field.
func (a *MemoryArea) Clear(ctx context.Context) error {
	a.mu.Lock()
	a.fields = map[string][]byte{}
	a.mu.Unlock()
	return nil
}
