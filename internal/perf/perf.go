package perf

import (
	"math"

	"fintwit-analyzer/internal/types"
)

// BenchmarkPolicy selects how alpha and the hit ratio are computed.
type BenchmarkPolicy string

const (
	// PerTradeAlpha uses the benchmark return measured over each
	// trade's own holding window. A hit is a trade with a positive
	// return.
	PerTradeAlpha BenchmarkPolicy = "PER_TRADE_ALPHA"

	// FixedBenchmark compares every trade against a flat benchmark
	// return. A hit is a trade that beats that benchmark.
	FixedBenchmark BenchmarkPolicy = "FIXED_BENCHMARK"
)

// The flat benchmark return, in percent, used by FixedBenchmark.
const fixedBenchmarkReturn = 10.0

// Aggregate reduces a set of trades to summary statistics. It is pure:
// no I/O, no mutation of the input. An empty input yields zero stats
// with nil best and worst trades.
func Aggregate(trades []types.TradeRecord, policy BenchmarkPolicy) types.Stats {
	if len(trades) == 0 {
		return types.Stats{}
	}

	var sumReturn, sumAlpha float64
	wins := 0
	hits := 0
	best := 0
	worst := 0

	for i, t := range trades {
		sumReturn += t.StockReturn
		sumAlpha += t.AlphaVsBenchmark

		if t.StockReturn > 0 {
			wins++
		}

		switch policy {
		case FixedBenchmark:
			if t.StockReturn > fixedBenchmarkReturn {
				hits++
			}
		default:
			if t.HitOrMiss == types.Hit {
				hits++
			}
		}

		// Strict comparisons keep the first trade on ties.
		if t.StockReturn > trades[best].StockReturn {
			best = i
		}
		if t.StockReturn < trades[worst].StockReturn {
			worst = i
		}
	}

	n := float64(len(trades))
	avgReturn := sumReturn / n

	var alpha float64
	if policy == FixedBenchmark {
		alpha = avgReturn - fixedBenchmarkReturn
	} else {
		alpha = sumAlpha / n
	}

	bestTrade := trades[best]
	worstTrade := trades[worst]

	return types.Stats{
		AvgReturn:   round2(avgReturn),
		Alpha:       round2(alpha),
		WinRate:     float64(wins) / n,
		HitRatio:    float64(hits) / n,
		BestTrade:   &bestTrade,
		WorstTrade:  &worstTrade,
		TotalTrades: len(trades),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
