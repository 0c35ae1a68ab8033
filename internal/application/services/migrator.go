package services

import (
	"context"
	"fmt"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/ports"
)

// Migrator moves a document out of the legacy storage area, once, into the
// current one.
type Migrator struct {
	legacy ports.StorageArea
	commit CommitFunc
	logger *logger.Logger
}

// NewMigrator creates a migrator reading legacy and writing through commit.
func NewMigrator(legacy ports.StorageArea, commit CommitFunc, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Migrator{
		legacy: legacy,
		commit: commit,
		logger: log.WithComponent("migrator").WithFields("legacy_area", legacy.Name()),
	}
}

// MigrateIfNeeded returns the migrated document, or nil when there was nothing
// to migrate. An empty legacy area records current with migrated=false, unless
// stored says the current area already holds a record. A non-empty legacy area
// is repaired, stamped migrated=true, committed, and then cleared on a
// best-effort basis.
func (m *Migrator) MigrateIfNeeded(ctx context.Context, current entities.Document, stored bool) (*entities.Document, error) {
	if current.Migrated {
		return nil, nil
	}

	raw, err := m.legacy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy area: %w", err)
	}

	if len(raw) == 0 {
		if stored {
			return nil, nil
		}
		current.Migrated = false
		if err := m.commit(ctx, current, entities.ActionMigrateData); err != nil {
			return nil, err
		}
		return nil, nil
	}

	doc := Repair(raw)
	doc.Migrated = true
	if err := m.commit(ctx, doc, entities.ActionMigrateData); err != nil {
		return nil, err
	}

	if err := m.legacy.Clear(ctx); err != nil {
		m.logger.WithError(err).Warn("Failed to clear legacy area after migration")
	}

	m.logger.Infow("Migrated legacy document",
		"tasks", doc.TaskCount(),
		"labels", len(doc.Labels),
	)
	return &doc, nil
}
