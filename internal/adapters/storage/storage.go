// Package storage provides the local storage areas the coordinator writes the
// document to. Every area stores one record: a map of top-level document
// fields to JSON values.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/config"
	"github.com/whattodo/core/internal/infrastructure/database"
	"github.com/whattodo/core/internal/ports"
)

// Area names. The legacy area held documents written before migration.
const (
	CurrentArea = "local"
	LegacyArea  = "sync"
)

// ErrQuotaExceeded is returned by Set when the encoded record does not fit in
// the area's quota.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Areas is the pair of storage areas the application runs on.
type Areas struct {
	Current ports.StorageArea
	Legacy  ports.StorageArea

	closers []func() error
}

// Close releases any resources held by the areas.
func (a *Areas) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the current and legacy areas for the configured backend.
func Open(cfg config.StorageConfig) (*Areas, error) {
	switch cfg.Backend {
	case "diskv":
		return &Areas{
			Current: NewDiskvArea(cfg.Path, CurrentArea, cfg.QuotaBytes, cfg.CacheSizeMax),
			Legacy:  NewDiskvArea(cfg.Path, LegacyArea, cfg.LegacyQuotaBytes, cfg.CacheSizeMax),
		}, nil
	case "sqlite":
		db, err := database.OpenSQLite(SQLitePath(cfg.Path))
		if err != nil {
			return nil, err
		}
		if err := EnsureSQLiteSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		return &Areas{
			Current: NewSQLiteArea(db, CurrentArea, cfg.QuotaBytes),
			Legacy:  NewSQLiteArea(db, LegacyArea, cfg.LegacyQuotaBytes),
			closers: []func() error{db.Close},
		}, nil
	case "memory":
		return &Areas{
			Current: NewMemoryArea(CurrentArea, cfg.QuotaBytes),
			Legacy:  NewMemoryArea(LegacyArea, cfg.LegacyQuotaBytes),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// encodeFields serializes each top-level field and enforces quota on the sum
// of key and value sizes.
func encodeFields(area string, quota int64, record map[string]any) (map[string][]byte, error) {
	fields := make(map[string][]byte, len(record))
	var size int64
	for key, value := range record {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, entities.NewStorageError(area, "set", fmt.Errorf("encode %s: %w", key, err))
		}
		fields[key] = b
		size += int64(len(key) + len(b))
	}
	if quota > 0 && size > quota {
		return nil, entities.NewStorageError(area, "set", fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, size, quota))
	}
	return fields, nil
}

func decodeField(area, key string, b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, entities.NewStorageError(area, "get", fmt.Errorf("decode %s: %w", key, err))
	}
	return v, nil
}
