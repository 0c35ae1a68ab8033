package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/database"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS storage_items (
	area  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (area, key)
)`

// SQLitePath returns the database file used for the sqlite backend under
// the storage directory.
func SQLitePath(dir string) string {
	return filepath.Join(dir, "whattodo.db")
}

// EnsureSQLiteSchema creates the storage table when missing.
func EnsureSQLiteSchema(db *database.DB) error {
	if _, err := db.DB.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to create storage schema: %w", err)
	}
	return nil
}

type storageItem struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// SQLiteArea stores each top-level document field as one row keyed by area
// and field name. Several areas share one database file.
type SQLiteArea struct {
	db    *database.DB
	name  string
	quota int64
}

// NewSQLiteArea creates an area over db. The schema must already exist.
func NewSQLiteArea(db *database.DB, name string, quota int64) *SQLiteArea {
	return &SQLiteArea{db: db, name: name, quota: quota}
}

// Name returns the area name.
func (a *SQLiteArea) Name() string { return a.name }

// QuotaBytes returns the area quota.
func (a *SQLiteArea) QuotaBytes() int64 { return a.quota }

// Get reads every stored field of the area.
func (a *SQLiteArea) Get(ctx context.Context) (map[string]any, error) {
	var items []storageItem
	err := a.db.DB.SelectContext(ctx, &items, `SELECT key, value FROM storage_items WHERE area = ?`, a.name)
	if err != nil {
		return nil, entities.NewStorageError(a.name, "get", err)
	}

	record := make(map[string]any, len(items))
	for _, item := range items {
		v, err := decodeField(a.name, item.Key, []byte(item.Value))
		if err != nil {
			return nil, err
		}
		record[item.Key] = v
	}
	return record, nil
}

// Set replaces the area's rows in one transaction.
func (a *SQLiteArea) Set(ctx context.Context, record map[string]any) error {
	fields, err := encodeFields(a.name, a.quota, record)
	if err != nil {
		return err
	}

	err = a.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM storage_items WHERE area = ?`, a.name); err != nil {
			return err
		}
		for key, b := range fields {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO storage_items (area, key, value) VALUES (?, ?, ?)`,
				a.name, key, string(b),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return entities.NewStorageError(a.name, "set", err)
	}
	return nil
}

// Clear deletes the area's rows.
func (a *SQLiteArea) Clear(ctx context.Context) error {
	if _, err := a.db.DB.ExecContext(ctx, `DELETE FROM storage_items WHERE area = ?`, a.name); err != nil {
		return entities.NewStorageError(a.name, "clear", err)
	}
	return nil
}
