package store

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	BackendSnapshot = "snapshot"
	BackendLevelDB  = "leveldb"
)

// Open creates the store for the named backend inside dataDir and restores it.
// Opening a leveldb store imports an existing snapshot when the database is empty.
func Open(ctx context.Context, dataDir, backend string, atomicSnapshot bool) (*Store, error) {
	var snapOpts []SnapshotOption
	if atomicSnapshot {
		snapOpts = append(snapOpts, WithAtomicWrites())
	}
	snap := NewSnapshot(filepath.Join(dataDir, SnapshotFilename), snapOpts...)

	var b Backend
	switch backend {
	case "", BackendSnapshot:
		b = snap
	case BackendLevelDB:
		db, err := NewLevelDB(filepath.Join(dataDir, LevelDBDirname))
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, db, snap); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating snapshot into leveldb: %w", err)
		}
		b = db
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}

	s := New(b)
	if err := s.Restore(); err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}
