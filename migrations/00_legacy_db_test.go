package migrations

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/auditor/config"
	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/store"
)

func legacyDatabase(t *testing.T, hosts map[string]legacyRecord) []byte {
	t.Helper()
	raw, err := json.Marshal(hosts)
	require.NoError(t, err)

	buf := make([]byte, lz4.CompressBlockBound(len(raw)))
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, buf)
	require.NoError(t, err)
	require.NotZero(t, n, "fixture must be compressible")

	out := make([]byte, 4, 4+n)
	binary.LittleEndian.PutUint32(out, uint32(len(raw)))
	return append(out, buf[:n]...)
}

func legacyHosts() map[string]legacyRecord {
	observations := make([]shared.Observation, 0, 10)
	for i := 0; i < 10; i++ {
		observations = append(observations, shared.Observation{
			ID:        fmt.Sprintf("obs-%d", i),
			CPUCount:  4,
			CPUIdle:   90,
			CPUUsage:  10,
			MemUsage:  50,
			SysUptime: 3600,
			Timestamp: uint64(1_600_000_000 + i),
		})
	}
	return map[string]legacyRecord{
		"h1": {PublicKey: "key-1", Statistics: observations},
		"h2": {PublicKey: "key-2", Statistics: observations[:3]},
	}
}

func requireImported(t *testing.T, dataDir string) {
	t.Helper()
	st, err := store.Open(context.Background(), dataDir, store.BackendSnapshot, false)
	require.NoError(t, err)
	require.Equal(t, 2, st.Len())

	rec, ok := st.Get("h1")
	require.True(t, ok)
	require.Equal(t, "key-1", rec.PublicKey)
	require.Len(t, rec.Observations, 10)
	require.Equal(t, "obs-9", rec.Observations[9].ID)
	require.Equal(t, uint64(1_600_000_009), rec.Observations[9].Timestamp)
}

func TestMigrateLegacyDatabaseInPlace(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	legacyPath := filepath.Join(dataDir, store.SnapshotFilename)
	require.NoError(t, os.WriteFile(legacyPath, legacyDatabase(t, legacyHosts()), 0o600))

	require.NoError(t, migrateLegacyDatabase(context.Background(), dataDir))
	require.FileExists(t, legacyPath+LegacySuffix)
	requireImported(t, dataDir)

	// A second run finds a snapshot and leaves it alone.
	require.NoError(t, migrateLegacyDatabase(context.Background(), dataDir))
	requireImported(t, dataDir)
}

func TestMigrateLegacyDatabaseWithoutSeparator(t *testing.T) {
	t.Parallel()
	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dataDir, 0o700))
	legacyPath := dataDir + store.SnapshotFilename
	require.NoError(t, os.WriteFile(legacyPath, legacyDatabase(t, legacyHosts()), 0o600))

	require.NoError(t, migrateLegacyDatabase(context.Background(), dataDir))
	require.NoFileExists(t, legacyPath)
	require.FileExists(t, legacyPath+LegacySuffix)
	requireImported(t, dataDir)
}

func TestMigrateFailedImportKeepsLegacyDatabase(t *testing.T) {
	t.Parallel()
	dataDir := filepath.Join(t.TempDir(), "data")
	legacyPath := dataDir + store.SnapshotFilename
	legacy := legacyDatabase(t, legacyHosts())
	require.NoError(t, os.WriteFile(legacyPath, legacy, 0o600))

	// The data dir does not exist yet, so the snapshot cannot be written.
	require.Error(t, migrateLegacyDatabase(context.Background(), dataDir))
	data, err := os.ReadFile(legacyPath)
	require.NoError(t, err)
	require.Equal(t, legacy, data)

	require.NoError(t, os.Mkdir(dataDir, 0o700))
	require.NoError(t, migrateLegacyDatabase(context.Background(), dataDir))
	require.NoFileExists(t, legacyPath)
	require.FileExists(t, legacyPath+LegacySuffix)
	requireImported(t, dataDir)
}

func TestMigrateKeepsExistingSnapshot(t *testing.T) {
	t.Parallel()
	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dataDir, 0o700))

	snap := store.NewSnapshot(filepath.Join(dataDir, store.SnapshotFilename))
	require.NoError(t, snap.Save(map[string]*shared.HostRecord{"current": {PublicKey: "k"}}))
	legacyPath := dataDir + store.SnapshotFilename
	require.NoError(t, os.WriteFile(legacyPath, legacyDatabase(t, legacyHosts()), 0o600))

	require.NoError(t, migrateLegacyDatabase(context.Background(), dataDir))
	require.FileExists(t, legacyPath)

	records, err := snap.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Contains(t, records, "current")
}

func TestMigrateRejectsGarbageSnapshot(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, store.SnapshotFilename), []byte("garbage"), 0o600))
	require.Error(t, migrateLegacyDatabase(context.Background(), dataDir))
}

func TestMigrateNothingToMigrate(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	require.NoError(t, Migrate(context.Background(), cfg))
	entries, err := os.ReadDir(cfg.DataDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
