package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutableOutlivesTestDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the auditor executable")
	}

	var (
		first   *ServerConfig
		baseDir string
	)
	t.Run("first", func(t *testing.T) {
		baseDir = t.TempDir()
		cfg, err := DefaultConfig(baseDir)
		require.NoError(t, err)
		first = cfg
	})
	require.NoDirExists(t, baseDir)
	require.FileExists(t, first.exe)

	cfg, err := DefaultConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, first.exe, cfg.exe)
	require.FileExists(t, cfg.exe)
}
