package migrations

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/spacemeshos/auditor/logging"
	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/store"
)

// LegacySuffix is appended to a legacy database once it was imported.
const LegacySuffix = ".legacy"

// maxLegacySize bounds the uncompressed size a legacy header may declare.
const maxLegacySize = 1 << 30

type legacyRecord struct {
	PublicKey  string               `json:"public_key"`
	Statistics []shared.Observation `json:"statistics"`
}

// migrateLegacyDatabase imports a database written by the previous agents:
// an lz4 block prefixed with its little-endian uncompressed size, holding a
// JSON map of host records. Older agents joined the data dir and file name
// without a separator, so both locations are checked.
func migrateLegacyDatabase(ctx context.Context, dataDir string) error {
	logger := logging.FromContext(ctx)
	snapshotPath := filepath.Join(dataDir, store.SnapshotFilename)

	candidates := []string{
		snapshotPath,
		filepath.Clean(dataDir) + store.SnapshotFilename,
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path) //#nosec G304
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if path == snapshotPath {
			if _, err := store.NewSnapshot(path).Load(); err == nil {
				continue
			}
		}

		records, err := decodeLegacy(data)
		if err != nil {
			if path == snapshotPath {
				return fmt.Errorf("%s is neither a snapshot nor a legacy database: %w", path, err)
			}
			logger.Warn("ignoring unreadable legacy database", zap.String("path", path), zap.Error(err))
			continue
		}
		if path != snapshotPath {
			if _, err := os.Stat(snapshotPath); err == nil {
				logger.Warn("snapshot already present, not importing legacy database", zap.String("path", path))
				continue
			}
		}

		// The legacy file stays in place until the snapshot is on disk.
		if err := os.WriteFile(path+LegacySuffix, data, 0o600); err != nil {
			return fmt.Errorf("backing up legacy database: %w", err)
		}
		if err := store.NewSnapshot(snapshotPath, store.WithAtomicWrites()).Save(records); err != nil {
			return fmt.Errorf("writing imported snapshot: %w", err)
		}
		if path != snapshotPath {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("removing imported legacy database: %w", err)
			}
		}
		logger.Info("imported legacy database",
			zap.String("from", path),
			zap.String("backup", path+LegacySuffix),
			zap.Int("hosts", len(records)),
		)
	}
	return nil
}

func decodeLegacy(data []byte) (map[string]*shared.HostRecord, error) {
	if len(data) < 4 {
		return nil, errors.New("legacy database is too short")
	}
	size := binary.LittleEndian.Uint32(data[:4])
	if size > maxLegacySize {
		return nil, fmt.Errorf("legacy database declares %d bytes", size)
	}
	raw := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], raw)
	if err != nil {
		return nil, fmt.Errorf("decompressing legacy database: %w", err)
	}

	var legacy map[string]legacyRecord
	if err := json.Unmarshal(raw[:n], &legacy); err != nil {
		return nil, fmt.Errorf("decoding legacy database: %w", err)
	}
	records := make(map[string]*shared.HostRecord, len(legacy))
	for hostID, rec := range legacy {
		records[hostID] = &shared.HostRecord{PublicKey: rec.PublicKey, Observations: rec.Statistics}
	}
	return records, nil
}
