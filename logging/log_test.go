package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spacemeshos/auditor/logging"
)

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	t.Parallel()
	logger := zap.NewNop()
	ctx := logging.NewContext(context.Background(), logger)
	require.Same(t, logger, logging.FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	t.Parallel()
	require.NotNil(t, logging.FromContext(context.Background()))
}

func TestWritesToLogFile(t *testing.T) {
	t.Parallel()
	logFile := filepath.Join(t.TempDir(), "auditor.log")
	logger := logging.New(zap.InfoLevel, logFile, true, logging.FileOptions{MaxBackups: 1, MaxSizeMB: 1})
	logger.Info("hello", zap.String("host_id", "h1"))
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `"host_id":"h1"`)
}
