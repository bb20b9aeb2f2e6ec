package main

import (
	"fmt"
	"log"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spacemeshos/auditor/benchmark"
	"github.com/spacemeshos/auditor/scoring"
	"github.com/spacemeshos/auditor/shared"
)

func main() {
	runtime.MemProfileRate = 0
	println("Memory profiling disabled.")

	cfg, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}

	if cfg.CPU {
		dir, err := os.Getwd()
		if err != nil {
			log.Fatal("cant get current dir", err)
		}

		profFilePath := path.Join(dir, "./CPU.prof")
		fmt.Printf("CPU profile: %s\n", profFilePath)

		f, err := os.Create(profFilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()

		println("Cpu profiling enabled and started...")
	}

	fmt.Printf("loops: %d, rounds: %d, cpus: %d\n", cfg.Loops, cfg.Rounds, runtime.NumCPU())
	fmt.Printf("%-6s %-14s %-14s %-14s %-14s %-14s\n", "round", "st", "mt2", "mt4", "mt8", "bench factor")
	for i := 0; i < cfg.Rounds; i++ {
		t1 := time.Now()
		res := benchmark.Run(cfg.Loops)
		fmt.Printf("%-6d %-14g %-14g %-14g %-14g %-14g (%s)\n",
			i, res.ST, res.MT2, res.MT4, res.MT8, benchFactor(res), time.Since(t1))
	}
}

// benchFactor is the part of an observation score contributed by the benchmark.
func benchFactor(res benchmark.Result) float64 {
	return scoring.Score(shared.Observation{
		CPUUsage:              100,
		MemUsage:              100,
		MT2Result:             res.MT2,
		MT4Result:             res.MT4,
		MT8Result:             res.MT8,
		STResult:              res.ST,
		SysLoadAverageOne:     1,
		SysLoadAverageFive:    1,
		SysLoadAverageFifteen: 1,
		SysUptime:             1,
	})
}
