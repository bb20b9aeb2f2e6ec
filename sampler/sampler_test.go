package sampler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShares(t *testing.T) {
	t.Parallel()
	prev := CPUCounters{User: 100, Nice: 0, System: 50, Idle: 800, IOWait: 0, IRQ: 10, SoftIRQ: 0, Total: 960}
	cur := CPUCounters{User: 110, Nice: 5, System: 55, Idle: 870, IOWait: 5, IRQ: 12, SoftIRQ: 3, Total: 1060}

	shares := Shares(prev, cur)
	require.InDelta(t, 75.0, shares.Idle, 1e-9)
	require.InDelta(t, 5.0, shares.Interrupt, 1e-9)
	require.InDelta(t, 5.0, shares.Nice, 1e-9)
	require.InDelta(t, 5.0, shares.System, 1e-9)
	require.InDelta(t, 10.0, shares.User, 1e-9)
}

func TestSharesWithoutProgress(t *testing.T) {
	t.Parallel()
	c := CPUCounters{Total: 10}
	require.Equal(t, CPUShares{Idle: 100}, Shares(c, c))
}
