package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadingNonExistingConfigFile(t *testing.T) {
	cfg := Config{
		ConfigFile: "non-existing-file",
	}
	_, err := ReadConfigFile(&cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		ConfigFile: filepath.Join(dir, "config.ini"),
	}
	err := os.WriteFile(cfg.ConfigFile, []byte("data-dir = /tmp\nserver-mode = true\n[Store]\nstore-backend = leveldb\n"), 0o600)
	require.NoError(t, err)

	cfg, err = ReadConfigFile(cfg)
	require.NoError(t, err)
	require.Equal(t, "/tmp", cfg.DataDir)
	require.Equal(t, ModeServer, cfg.Mode())
	require.Equal(t, "leveldb", cfg.Store.Backend)
}

func TestReadConfigFilePathNotSet(t *testing.T) {
	cfg, err := ReadConfigFile(&Config{})
	require.NoError(t, err)
	require.Equal(t, &Config{}, cfg)
}

func TestModePrecedence(t *testing.T) {
	t.Parallel()
	require.Equal(t, ModeClient, (&Config{}).Mode())
	require.Equal(t, ModeClient, (&Config{ClientMode: true}).Mode())
	require.Equal(t, ModeClientLoadSimulator, (&Config{ClientLoadSimulatorMode: true}).Mode())
	require.Equal(t, ModeServer, (&Config{ServerMode: true, ClientLoadSimulatorMode: true}).Mode())
}

func TestSetupConfigCreatesDirectoriesUnderAuditorDir(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.AuditorDir = filepath.Join(t.TempDir(), "auditor")

	cfg, err := SetupConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.AuditorDir, "data"), cfg.DataDir)
	require.Equal(t, filepath.Join(cfg.AuditorDir, "etc"), cfg.EtcDir)
	require.DirExists(t, cfg.DataDir)
	require.DirExists(t, cfg.EtcDir)
	require.DirExists(t, cfg.LogDir)
}

func TestSetupConfigRequiresExplicitDirectoriesToExist(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.AuditorDir = filepath.Join(base, "auditor")
	cfg.DataDir = filepath.Join(base, "elsewhere", "data")

	_, err := SetupConfig(cfg)
	require.ErrorIs(t, err, ErrMissingDirectory)

	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o700))
	_, err = SetupConfig(cfg)
	require.NoError(t, err)
}

func TestPrint(t *testing.T) {
	t.Parallel()
	cfg := &Config{DataDir: "/data", EtcDir: "/etc/auditor", ServerMode: true}
	var buf bytes.Buffer
	cfg.Print(&buf, "h1")
	require.Equal(t, "data_dir = /data\netc_dir = /etc/auditor\nhost_id = h1\nmode = Server\n", buf.String())
}

func TestReparsedFlagsAreExpanded(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AUDITOR_TEST_BASE", base)
	require.NoError(t, os.Mkdir(filepath.Join(base, "data"), 0o700))

	args := os.Args
	t.Cleanup(func() { os.Args = args })
	os.Args = []string{"auditor", "--auditordir=$AUDITOR_TEST_BASE/auditor", "--data-dir=$AUDITOR_TEST_BASE//data/"}

	cfg, err := ParseFlags(DefaultConfig())
	require.NoError(t, err)
	cfg, err = SetupConfig(cfg)
	require.NoError(t, err)
	cfg, err = ParseFlags(cfg)
	require.NoError(t, err)
	require.Equal(t, "$AUDITOR_TEST_BASE//data/", cfg.DataDir)

	cfg.ExpandPaths()
	require.Equal(t, filepath.Join(base, "auditor"), cfg.AuditorDir)
	require.Equal(t, filepath.Join(base, "data"), cfg.DataDir)
	require.Equal(t, filepath.Join(base, "auditor", "logs"), cfg.LogDir)
}
