package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/spacemeshos/auditor/benchmark"
)

const defaultCPU = false

// config defines the configuration options for bench.
type config struct {
	Loops  uint32 `short:"n" description:"fibonacci iterations per goroutine"`
	Rounds int    `short:"r" description:"how many times to repeat the benchmark"`
	CPU    bool   `short:"c" description:"whether to enable CPU profiling"`
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, error) {
	// Default config.
	cfg := config{
		Loops:  benchmark.DefaultLoops,
		Rounds: 1,
		CPU:    defaultCPU,
	}

	// Parse command line options.
	if _, err := flags.Parse(&cfg); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		return nil, err
	}

	return &cfg, nil
}
