package sampler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// loadShift is SI_LOAD_SHIFT, the fixed point scale of sysinfo load averages.
const loadShift = 1 << 16

func sample(ctx context.Context, window time.Duration) (Sample, error) {
	prev, err := readCPUCounters()
	if err != nil {
		return Sample{}, err
	}
	if err := sleep(ctx, window); err != nil {
		return Sample{}, err
	}
	cur, err := readCPUCounters()
	if err != nil {
		return Sample{}, err
	}
	shares := Shares(prev, cur)

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Sample{}, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	memTotal := uint64(info.Totalram) * unit
	memFree := uint64(info.Freeram) * unit
	var memUsage float64
	if memTotal > 0 {
		memUsage = float64(memFree) / float64(memTotal)
	}

	return Sample{
		CPUCount:           uint16(runtime.NumCPU()),
		CPUIdle:            shares.Idle,
		CPUInterrupt:       shares.Interrupt,
		CPUNice:            shares.Nice,
		CPUSystem:          shares.System,
		CPUUser:            shares.User,
		MemFree:            memFree,
		MemTotal:           memTotal,
		MemUsage:           memUsage,
		LoadAverageOne:     float64(info.Loads[0]) / loadShift,
		LoadAverageFive:    float64(info.Loads[1]) / loadShift,
		LoadAverageFifteen: float64(info.Loads[2]) / loadShift,
		Uptime:             float64(info.Uptime),
	}, nil
}

func readCPUCounters() (CPUCounters, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return CPUCounters{}, fmt.Errorf("open /proc/stat: %w", err)
	}
	defer f.Close()
	return parseCPUCounters(f)
}

func parseCPUCounters(r io.Reader) (CPUCounters, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 8 {
			return CPUCounters{}, fmt.Errorf("unexpected cpu line: %q", line)
		}
		vals := make([]uint64, 0, len(parts)-1)
		for _, p := range parts[1:] {
			v, err := strconv.ParseUint(p, 10, 64)
			if err != nil {
				return CPUCounters{}, fmt.Errorf("parse cpu stat %q: %w", p, err)
			}
			vals = append(vals, v)
		}
		var c CPUCounters
		fields := []*uint64{&c.User, &c.Nice, &c.System, &c.Idle, &c.IOWait, &c.IRQ, &c.SoftIRQ, &c.Steal}
		// guest and guest_nice are already included in user and nice.
		for i, v := range vals {
			if i >= len(fields) {
				break
			}
			*fields[i] = v
			c.Total += v
		}
		return c, nil
	}
	if err := s.Err(); err != nil {
		return CPUCounters{}, fmt.Errorf("scan /proc/stat: %w", err)
	}
	return CPUCounters{}, fmt.Errorf("cpu aggregate line not found")
}
