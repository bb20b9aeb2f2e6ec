package integration_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/auditor/client"
	"github.com/spacemeshos/auditor/integration"
	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/signing"
	"github.com/spacemeshos/auditor/store"
)

func TestMain(m *testing.M) {
	code := m.Run()
	if err := integration.RemoveBuild(); err != nil {
		fmt.Fprintf(os.Stderr, "removing auditor build: %v\n", err)
	}
	os.Exit(code)
}

func newHarness(t *testing.T, cfg *integration.ServerConfig, hostID string) *integration.Harness {
	t.Helper()
	identity, err := signing.Generate(1024)
	require.NoError(t, err)

	h, err := integration.NewHarness(context.Background(), cfg, client.WithIdentity(identity, hostID))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, h.TearDown(true), "failed to tear down harness")
	})
	return h
}

func report() shared.Report {
	return shared.Report{
		CPUCount:              2,
		CPUIdle:               90,
		MemUsage:              50,
		MT2Result:             0.5,
		MT4Result:             0.5,
		MT8Result:             0.5,
		STResult:              0.5,
		SysLoadAverageFifteen: 1,
		SysLoadAverageFive:    1,
		SysLoadAverageOne:     1,
		SysUptime:             3600,
	}
}

func TestHarness(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and spawns the auditor binary")
	}
	for _, backend := range []string{store.BackendSnapshot, store.BackendLevelDB} {
		backend := backend
		t.Run(backend, func(t *testing.T) {
			cfg, err := integration.DefaultConfig(t.TempDir())
			require.NoError(t, err)
			cfg.StoreBackend = backend

			h := newHarness(t, cfg, "node-1")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			for i := 0; i < 2; i++ {
				_, err := h.Submit(ctx, report())
				require.NoError(t, err)
			}

			proof, err := h.ProofOfComputation(ctx, "node-1")
			require.NoError(t, err)
			require.Len(t, proof.Data, 2)
			require.InDelta(t, 22.5, proof.ProofOfComputation, 1e-9)

			select {
			case err := <-h.ProcessErrors():
				require.NoError(t, err, h.Stderr())
			default:
			}
		})
	}
}
