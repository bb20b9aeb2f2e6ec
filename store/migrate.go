package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spacemeshos/auditor/logging"
)

// Migrate copies all records from an old backend into an empty target backend.
// It is a no-op when the old backend is empty or the target already holds records.
func Migrate(ctx context.Context, target, old Backend) error {
	log := logging.FromContext(ctx)

	existing, err := target.Load()
	if err != nil {
		return fmt.Errorf("loading target backend: %w", err)
	}
	if len(existing) > 0 {
		log.Debug("skipping store migration - target is not empty", zap.Int("hosts", len(existing)))
		return nil
	}

	records, err := old.Load()
	if err != nil {
		return fmt.Errorf("loading old backend: %w", err)
	}
	if len(records) == 0 {
		log.Debug("skipping store migration - nothing to migrate")
		return nil
	}

	if err := target.Save(records); err != nil {
		return fmt.Errorf("saving migrated records: %w", err)
	}
	log.Info("migrated store", zap.Int("hosts", len(records)))
	return nil
}
