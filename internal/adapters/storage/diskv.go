package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv/v3"

	"github.com/whattodo/core/internal/domain/entities"
)

// DiskvArea stores each top-level document field as one file under
// <base>/<name>.
type DiskvArea struct {
	name     string
	quota    int64
	basePath string
	d        *diskv.Diskv
}

// NewDiskvArea creates an area rooted at base/name. Writes go through a temp
// directory next to the area so readers never see a partial file.
func NewDiskvArea(base, name string, quota int64, cacheSizeMax uint64) *DiskvArea {
	basePath := filepath.Join(base, name)
	return &DiskvArea{
		name:     name,
		quota:    quota,
		basePath: basePath,
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			TempDir:      filepath.Join(base, ".tmp"),
			CacheSizeMax: cacheSizeMax,
		}),
	}
}

// Name returns the area name.
func (a *DiskvArea) Name() string { return a.name }

// QuotaBytes returns the area quota.
func (a *DiskvArea) QuotaBytes() int64 { return a.quota }

// BasePath returns the directory holding the area's files.
func (a *DiskvArea) BasePath() string { return a.basePath }

// Get reads every stored field.
func (a *DiskvArea) Get(ctx context.Context) (map[string]any, error) {
	record := map[string]any{}
	if _, err := os.Stat(a.basePath); errors.Is(err, fs.ErrNotExist) {
		return record, nil
	}

	cancel := make(chan struct{})
	defer close(cancel)

	for key := range a.d.Keys(cancel) {
		if err := ctx.Err(); err != nil {
			return nil, entities.NewStorageError(a.name, "get", err)
		}
		b, err := a.readDirect(key)
		if err != nil {
			return nil, entities.NewStorageError(a.name, "get", err)
		}
		v, err := decodeField(a.name, key, b)
		if err != nil {
			return nil, err
		}
		record[key] = v
	}
	return record, nil
}

// readDirect bypasses the diskv cache so files written by another process are
// seen.
func (a *DiskvArea) readDirect(key string) ([]byte, error) {
	rc, err := a.d.ReadStream(key, true)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Set replaces the stored record: every field in record is written and any
// stored field missing from it is erased.
func (a *DiskvArea) Set(ctx context.Context, record map[string]any) error {
	fields, err := encodeFields(a.name, a.quota, record)
	if err != nil {
		return err
	}

	for key, b := range fields {
		if err := ctx.Err(); err != nil {
			return entities.NewStorageError(a.name, "set", err)
		}
		if err := a.d.Write(key, b); err != nil {
			return entities.NewStorageError(a.name, "set", err)
		}
	}

	var stale []string
	cancel := make(chan struct{})
	for key := range a.d.Keys(cancel) {
		if _, ok := fields[key]; !ok {
			stale = append(stale, key)
		}
	}
	close(cancel)

	for _, key := range stale {
		if err := a.d.Erase(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return entities.NewStorageError(a.name, "set", err)
		}
	}
	return nil
}

// Clear removes every stored field.
func (a *DiskvArea) Clear(ctx context.Context) error {
	if err := a.d.EraseAll(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return entities.NewStorageError(a.name, "clear", err)
	}
	return nil
}
