package exposure

import "math"

// varZScore95 is the one-tailed normal z-score for a 95% confidence level,
// the default confidence used throughout this package's VaR/ES formulas.
const varZScore95 = 1.65

// esOverVaR95 approximates expected shortfall as a fixed multiple of VaR
// at 95% confidence, matching the approximation used by the arbitrage
// engine's own risk metrics.
const esOverVaR95 = 1.3

// RiskCalculator computes position- and portfolio-level risk metrics from
// price history and correlation data recorded as positions are updated.
type RiskCalculator struct {
	priceHistory map[string][]float64
	correlation  map[[2]string]float64
}

// NewRiskCalculator constructs an empty calculator.
func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{
		priceHistory: make(map[string][]float64),
		correlation:  make(map[[2]string]float64),
	}
}

// RecordPrice appends an observed price for an instrument, used by
// CalculateValueAtRisk's historical-volatility estimate.
func (r *RiskCalculator) RecordPrice(instrumentKey string, price float64) {
	hist := r.priceHistory[instrumentKey]
	hist = append(hist, price)
	if len(hist) > 500 {
		hist = hist[len(hist)-500:]
	}
	r.priceHistory[instrumentKey] = hist
}

// SetCorrelation records a pairwise correlation between two instruments.
func (r *RiskCalculator) SetCorrelation(a, b string, rho float64) {
	r.correlation[corrKey(a, b)] = rho
}

func corrKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func (r *RiskCalculator) correlationOf(a, b string) float64 {
	if a == b {
		return 1
	}
	if rho, ok := r.correlation[corrKey(a, b)]; ok {
		return rho
	}
	return math.NaN()
}

func stddev(samples []float64) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(n)
	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	return math.Sqrt(variance)
}

// CalculateValueAtRisk estimates a single position's parametric VaR over
// timeHorizonDays using the historical volatility of its recorded prices;
// confidenceLevel is accepted for interface symmetry with the original
// sizing surface but only the 95% z-score is implemented.
func (r *RiskCalculator) CalculateValueAtRisk(pos Position, confidenceLevel float64, timeHorizonDays int) float64 {
	hist := r.priceHistory[pos.InstrumentID]
	sigma := stddev(returns(hist))
	if sigma == 0 {
		sigma = 0.02 // conservative default daily volatility when no history
	}
	horizon := math.Sqrt(float64(timeHorizonDays))
	return varZScore95 * sigma * horizon * pos.Notional()
}

func returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// CalculateExpectedShortfall approximates ES as esOverVaR95*VaR, consistent
// with the arbitrage engine's own shortfall proxy.
func (r *RiskCalculator) CalculateExpectedShortfall(pos Position, confidenceLevel float64) float64 {
	return esOverVaR95 * r.CalculateValueAtRisk(pos, confidenceLevel, 1)
}

// CalculateMaximumDrawdown returns the largest peak-to-trough decline in a
// cumulative P&L series.
func (r *RiskCalculator) CalculateMaximumDrawdown(pnlHistory []float64) float64 {
	if len(pnlHistory) == 0 {
		return 0
	}
	var cumulative, peak, maxDD float64
	for _, pnl := range pnlHistory {
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// CalculatePortfolioVaR sums position VaRs weighted by pairwise correlation:
// sqrt(VaR^T * Corr * VaR), falling back to a simple sum (fully correlated)
// when no correlation is on record for a pair.
func (r *RiskCalculator) CalculatePortfolioVaR(positions []Position, confidenceLevel float64) float64 {
	n := len(positions)
	if n == 0 {
		return 0
	}
	vars := make([]float64, n)
	for i, p := range positions {
		vars[i] = r.CalculateValueAtRisk(p, confidenceLevel, 1)
	}
	var sumSquares float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rho := r.correlationOf(positions[i].InstrumentID, positions[j].InstrumentID)
			if math.IsNaN(rho) {
				rho = 1 // assume full correlation absent data, the conservative case
			}
			sumSquares += vars[i] * vars[j] * rho
		}
	}
	if sumSquares < 0 {
		sumSquares = 0
	}
	return math.Sqrt(sumSquares)
}

// CalculateCorrelationRisk returns the maximum absolute pairwise
// correlation across the given positions, or 0 for fewer than two.
func (r *RiskCalculator) CalculateCorrelationRisk(positions []Position) float64 {
	var maxRho float64
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			rho := r.correlationOf(positions[i].InstrumentID, positions[j].InstrumentID)
			if math.IsNaN(rho) {
				continue
			}
			if abs := math.Abs(rho); abs > maxRho {
				maxRho = abs
			}
		}
	}
	return maxRho
}

// AssessRiskLevel delegates to the package-level helper, included on the
// calculator for interface parity with the position- and portfolio-level
// metric methods above.
func (r *RiskCalculator) AssessRiskLevel(pos Position, params RiskParams, portfolioValue float64) RiskLevel {
	return AssessRiskLevel(pos, params, portfolioValue)
}
