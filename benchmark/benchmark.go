// Package benchmark times a CPU-bound workload on one and several goroutines.
package benchmark

import (
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultLoops uint32 = 32

// Result holds seconds per loop iteration for each run.
// Lower is faster.
type Result struct {
	MT2 float64
	MT4 float64
	MT8 float64
	ST  float64
}

// Run executes the fibonacci workload loops times, first on one goroutine
// and then on 2, 4 and 8 concurrent goroutines.
func Run(loops uint32) Result {
	if loops == 0 {
		loops = DefaultLoops
	}
	return Result{
		ST:  timed(loops, 1),
		MT2: timed(loops, 2),
		MT4: timed(loops, 4),
		MT8: timed(loops, 8),
	}
}

func timed(loops uint32, workers int) float64 {
	start := time.Now()
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			fibonacciLoop(loops)
			return nil
		})
	}
	_ = eg.Wait()
	return time.Since(start).Seconds() / float64(uint64(loops)*uint64(workers))
}

func fibonacciLoop(loops uint32) uint32 {
	var result uint32
	for n := uint32(0); n < loops; n++ {
		result = fibonacci(n)
	}
	return result
}

func fibonacci(n uint32) uint32 {
	if n < 2 {
		return 1
	}
	return fibonacci(n-1) + fibonacci(n-2)
}
