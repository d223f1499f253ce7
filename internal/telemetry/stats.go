package telemetry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	seriesBins   = 8 // 1-D histograms
	positionBins = 6 // per axis, 6×6 grid for the 2-D distribution
)

// SeriesStats summarizes one numeric series. Degenerate inputs (empty or
// constant) yield zeros rather than NaN.
type SeriesStats struct {
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
	Entropy float64
}

func Summarize(values []float64) SeriesStats {
	if len(values) == 0 {
		return SeriesStats{}
	}
	return SeriesStats{
		Mean:    stat.Mean(values, nil),
		Std:     stat.PopStdDev(values, nil),
		Min:     floats.Min(values),
		Max:     floats.Max(values),
		Entropy: BinnedEntropy(values, seriesBins),
	}
}

// BinnedEntropy partitions the observed range of values into bins equal-width
// buckets and returns the Shannon entropy (base 2) of the bucket occupancy.
// A constant or empty series has entropy 0.
func BinnedEntropy(values []float64, bins int) float64 {
	if len(values) == 0 || bins <= 0 {
		return 0
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo {
		return 0
	}
	counts := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return entropyBits(counts, float64(len(values)))
}

// PositionEntropy is the 2-D analogue over a positionBins×positionBins grid,
// each axis binned across its own observed range.
func PositionEntropy(xs, ys []float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0
	}
	loX, hiX := floats.Min(xs), floats.Max(xs)
	loY, hiY := floats.Min(ys), floats.Max(ys)
	if hiX == loX && hiY == loY {
		return 0
	}
	counts := make([]float64, positionBins*positionBins)
	for i := range xs {
		counts[axisBin(xs[i], loX, hiX)*positionBins+axisBin(ys[i], loY, hiY)]++
	}
	return entropyBits(counts, float64(len(xs)))
}

func axisBin(v, lo, hi float64) int {
	if hi == lo {
		return 0
	}
	idx := int((v - lo) / (hi - lo) * positionBins)
	if idx >= positionBins {
		idx = positionBins - 1
	}
	return idx
}

func entropyBits(counts []float64, total float64) float64 {
	p := make([]float64, len(counts))
	for i, c := range counts {
		p[i] = c / total
	}
	return stat.Entropy(p) / math.Ln2
}

// TrendSlope fits y against its index by ordinary least squares and returns
// the slope, or 0 when fewer than two points exist.
func TrendSlope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}
