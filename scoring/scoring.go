// Package scoring reduces a host's observations to a proof of computation.
package scoring

import "github.com/spacemeshos/auditor/shared"

// Floor replaces any factor that would otherwise zero out the product.
const Floor = 0.01

// Score returns the partial proof of computation of a single observation.
// It rewards low load, fast benchmark ratios and long uptime.
func Score(o shared.Observation) float64 {
	return usageFactor(o.CPUUsage) *
		usageFactor(o.MemUsage) *
		benchmarkFactor(o.MT2Result) *
		benchmarkFactor(o.MT4Result) *
		benchmarkFactor(o.MT8Result) *
		benchmarkFactor(o.STResult) *
		loadFactor(o.SysLoadAverageFifteen) *
		loadFactor(o.SysLoadAverageFive) *
		loadFactor(o.SysLoadAverageOne) *
		o.SysUptime
}

// ProofOfComputation scores every observation not yet consumed by a proof, in order,
// and returns the per-observation entries along with their sum.
func ProofOfComputation(observations []shared.Observation) ([]shared.ProofEntry, float64) {
	entries := make([]shared.ProofEntry, 0, len(observations))
	var total float64
	for _, o := range observations {
		if o.ConsumedByProof {
			continue
		}
		partial := Score(o)
		entries = append(entries, shared.ProofEntry{ID: o.ID, PartialProofOfComputation: partial})
		total += partial
	}
	return entries, total
}

func usageFactor(percent float64) float64 {
	f := percent / 100
	if f == 0 {
		return Floor
	}
	return f
}

func benchmarkFactor(ratio float64) float64 {
	f := 1 - ratio
	if f <= 0 {
		return Floor
	}
	return f
}

func loadFactor(load float64) float64 {
	if load <= 0 {
		return Floor
	}
	return load
}
