package migrations

import (
	"context"

	"github.com/spacemeshos/auditor/config"
	"github.com/spacemeshos/auditor/logging"
)

// Migrate brings the data directory up to date before the store is opened.
func Migrate(ctx context.Context, cfg *config.Config) error {
	ctx = logging.NewContext(ctx, logging.FromContext(ctx).Named("migrations"))
	if err := migrateLegacyDatabase(ctx, cfg.DataDir); err != nil {
		return err
	}
	return nil
}
