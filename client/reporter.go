package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/spacemeshos/auditor/benchmark"
	"github.com/spacemeshos/auditor/logging"
	"github.com/spacemeshos/auditor/sampler"
	"github.com/spacemeshos/auditor/shared"
)

// SampleFunc takes one host metrics sample.
type SampleFunc func(ctx context.Context) (sampler.Sample, error)

// BenchmarkFunc runs the CPU benchmark.
type BenchmarkFunc func() benchmark.Result

// Reporter periodically samples the host and submits statistics.
type Reporter struct {
	client    *Client
	interval  time.Duration
	sample    SampleFunc
	benchmark BenchmarkFunc
}

type ReporterOption func(*Reporter)

func WithSampler(fn SampleFunc) ReporterOption {
	return func(r *Reporter) {
		r.sample = fn
	}
}

func WithBenchmark(fn BenchmarkFunc) ReporterOption {
	return func(r *Reporter) {
		r.benchmark = fn
	}
}

func NewReporter(cl *Client, interval time.Duration, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		client:    cl,
		interval:  interval,
		sample:    sampler.New().Sample,
		benchmark: func() benchmark.Result { return benchmark.Run(benchmark.DefaultLoops) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run benchmarks the host once and then submits a report every interval
// until ctx is canceled. Failed submissions are logged and retried on the
// next tick.
func (r *Reporter) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).With(zap.String("host_id", r.client.HostID()))

	bench := r.benchmark()
	logger.Info("benchmark finished",
		zap.Float64("st", bench.ST),
		zap.Float64("mt2", bench.MT2),
		zap.Float64("mt4", bench.MT4),
		zap.Float64("mt8", bench.MT8),
	)

	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(r.interval), ctx))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticker.C:
			if !ok {
				return nil
			}
		}
		resp, err := r.ReportOnce(ctx, bench)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Warn("failed to submit statistics", zap.Error(err))
		default:
			logger.Debug("statistics accepted", zap.String("observation_id", resp.Data.ID))
		}
	}
}

// ReportOnce samples the host and submits a single report carrying bench.
func (r *Reporter) ReportOnce(ctx context.Context, bench benchmark.Result) (*shared.StatisticsResponse, error) {
	sample, err := r.sample(ctx)
	if err != nil {
		return nil, fmt.Errorf("sampling host: %w", err)
	}
	return r.client.PostStatistics(ctx, buildReport(sample, bench))
}

// RunLoadSimulator keeps the CPU busy by rerunning the benchmark every
// interval until ctx is canceled.
func RunLoadSimulator(ctx context.Context, interval time.Duration, loops uint32) error {
	logger := logging.FromContext(ctx)
	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticker.C:
			if !ok {
				return nil
			}
		}
		res := benchmark.Run(loops)
		logger.Debug("load simulation round finished", zap.Float64("st", res.ST))
	}
}

func buildReport(s sampler.Sample, b benchmark.Result) shared.Report {
	return shared.Report{
		CPUCount:              s.CPUCount,
		CPUIdle:               s.CPUIdle,
		CPUInterrupt:          s.CPUInterrupt,
		CPUNice:               s.CPUNice,
		CPUSystem:             s.CPUSystem,
		CPUUser:               s.CPUUser,
		MemFree:               s.MemFree,
		MemUsage:              s.MemUsage,
		MemTotal:              s.MemTotal,
		MT2Result:             b.MT2,
		MT4Result:             b.MT4,
		MT8Result:             b.MT8,
		STResult:              b.ST,
		SysLoadAverageFifteen: s.LoadAverageFifteen,
		SysLoadAverageFive:    s.LoadAverageFive,
		SysLoadAverageOne:     s.LoadAverageOne,
		SysUptime:             s.Uptime,
	}
}
