// Package sampler reads the host metrics a node reports.
package sampler

import (
	"context"
	"errors"
	"time"
)

var ErrUnsupportedPlatform = errors.New("host sampling is not supported on this platform")

// DefaultCPUWindow is the time between the two CPU counter reads of a sample.
const DefaultCPUWindow = time.Second

type Sample struct {
	CPUCount     uint16
	CPUIdle      float64
	CPUInterrupt float64
	CPUNice      float64
	CPUSystem    float64
	CPUUser      float64

	MemFree  uint64
	MemTotal uint64
	// MemUsage is the free share of memory, as reported by the original agents.
	MemUsage float64

	LoadAverageOne     float64
	LoadAverageFive    float64
	LoadAverageFifteen float64
	Uptime             float64
}

// CPUCounters are the cumulative jiffies of the aggregate cpu line.
type CPUCounters struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
	Total   uint64
}

// CPUShares holds the time share of each CPU state between two counter reads, in percent.
type CPUShares struct {
	Idle      float64
	Interrupt float64
	Nice      float64
	System    float64
	User      float64
}

// Shares computes the per-state percentages between prev and cur.
// IO wait counts as idle time, soft and hard IRQs count as interrupt time.
func Shares(prev, cur CPUCounters) CPUShares {
	if cur.Total <= prev.Total {
		return CPUShares{Idle: 100}
	}
	total := float64(cur.Total - prev.Total)
	pct := func(p, c uint64) float64 {
		if c < p {
			return 0
		}
		return float64(c-p) / total * 100
	}
	return CPUShares{
		Idle:      pct(prev.Idle+prev.IOWait, cur.Idle+cur.IOWait),
		Interrupt: pct(prev.IRQ+prev.SoftIRQ, cur.IRQ+cur.SoftIRQ),
		Nice:      pct(prev.Nice, cur.Nice),
		System:    pct(prev.System, cur.System),
		User:      pct(prev.User, cur.User),
	}
}

// Sampler takes a host metrics sample, waiting Window between CPU counter reads.
type Sampler struct {
	Window time.Duration
}

func New() *Sampler {
	return &Sampler{Window: DefaultCPUWindow}
}

func (s *Sampler) Sample(ctx context.Context) (Sample, error) {
	return sample(ctx, s.Window)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
