package pricing

import (
	"math"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// pearsonMidCorrelation computes Pearson correlation of mid prices between
// two same-length (or min-truncated) quote histories. Returns 0 when
// either series has fewer than two points or zero variance.
func pearsonMidCorrelation(h1, h2 []market.Quote) float64 {
	n := len(h1)
	if len(h2) < n {
		n = len(h2)
	}
	if n < 2 {
		return 0
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = h1[i].Mid()
		ys[i] = h2[i].Mid()
	}
	return pearson(xs, ys)
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// mean returns the arithmetic mean of xs, or 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev returns the sample (unbiased, n-1) standard deviation of xs.
func stddev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// zScore returns (x - mean(history)) / stddev(history), or 0 if stddev is 0.
func zScore(x float64, history []float64) float64 {
	sd := stddev(history)
	if sd == 0 {
		return 0
	}
	return (x - mean(history)) / sd
}
