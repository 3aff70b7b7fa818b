package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// BasketModel synthesizes a weighted basket price from its component
// instruments: synthetic_mid = sum(weight_i * mid_i), and derives basket
// volatility from the component covariance matrix via w^T * Sigma * w.
type BasketModel struct {
	mu          sync.Mutex
	params      Params
	weights     map[string][]float64
	volatilities map[string]float64
	correlation map[[2]string]float64
}

// NewBasketModel constructs a model with the given parameters.
func NewBasketModel(params Params) *BasketModel {
	return &BasketModel{
		params:       params,
		weights:      make(map[string][]float64),
		volatilities: make(map[string]float64),
		correlation:  make(map[[2]string]float64),
	}
}

// SetWeights installs the static basket weights for target, in the same
// order as the components slice passed to CalculateSyntheticPrice.
func (m *BasketModel) SetWeights(target string, weights []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float64, len(weights))
	copy(cp, weights)
	m.weights[target] = cp
}

// SetComponentVolatility records an annualized volatility for a component
// instrument, used by CalculatePortfolioVolatility.
func (m *BasketModel) SetComponentVolatility(instrumentKey string, vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volatilities[instrumentKey] = vol
}

func correlationKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// SetCorrelation records a pairwise correlation between two components.
func (m *BasketModel) SetCorrelation(a, b string, rho float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.correlation[correlationKey(a, b)] = rho
}

func (m *BasketModel) correlationOf(a, b string) float64 {
	if a == b {
		return 1.0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rho, ok := m.correlation[correlationKey(a, b)]; ok {
		return rho
	}
	return 0
}

// Correlation reports the cached pairwise correlation between two
// instruments, or NaN when neither SetCorrelation nor an equal-instrument
// match applies, so an unknown pair reads as unknown rather than as an
// observed zero correlation. Exposed for callers wiring the model's
// correlation cache into another package's own correlation lookup.
func (m *BasketModel) Correlation(a, b string) float64 {
	if a == b {
		return 1.0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rho, ok := m.correlation[correlationKey(a, b)]; ok {
		return rho
	}
	return math.NaN()
}

// CalculatePortfolioVolatility computes sqrt(w^T * Sigma * w) for the given
// components and weights, where Sigma is built from recorded component
// volatilities and pairwise correlations.
func (m *BasketModel) CalculatePortfolioVolatility(components []string, weights []float64) float64 {
	n := len(components)
	if n == 0 || len(weights) != n {
		return 0
	}
	m.mu.Lock()
	vols := make([]float64, n)
	for i, c := range components {
		vols[i] = m.volatilities[c]
	}
	m.mu.Unlock()

	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rho := m.correlationOf(components[i], components[j])
			variance += weights[i] * weights[j] * vols[i] * vols[j] * rho
		}
	}
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// CalculateSyntheticPrice implements Model: the basket mid is the
// weighted sum of component mids using weights previously installed via
// SetWeights (or an equal-weight fallback when none were set).
func (m *BasketModel) CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error) {
	if len(components) == 0 {
		return SyntheticPrice{}, ModelDomainError{Model: "basket", Reason: "empty basket"}
	}
	weights, err := m.CalculateWeights(components, snap)
	if err != nil {
		return SyntheticPrice{}, err
	}
	m.mu.Lock()
	if w, ok := m.weights[target]; ok && len(w) == len(components) {
		weights = w
	}
	m.mu.Unlock()

	var theoretical float64
	var oldest time.Time
	var combinedSpread float64
	for i, key := range components {
		q, ok := snap.Quote(key)
		if !ok {
			return SyntheticPrice{}, ModelDomainError{Model: "basket", Reason: "component quote missing: " + key}
		}
		theoretical += weights[i] * q.Mid()
		combinedSpread += math.Abs(weights[i]) * q.SpreadRatio()
		if oldest.IsZero() || q.Timestamp.Before(oldest) {
			oldest = q.Timestamp
		}
	}

	confidence := calculateConfidence(confidenceInputs{
		age:             time.Since(oldest),
		stalenessBudget: market.DefaultStalenessBudget,
		spreadRatio:     combinedSpread,
		maxSpreadRatio:  0.02,
		sampleSize:      m.params.LookbackPeriod,
		lookbackPeriod:  m.params.LookbackPeriod,
	})

	return SyntheticPrice{
		TheoreticalPrice:     theoretical,
		BidPrice:             theoretical * (1 - m.params.TransactionCost - combinedSpread/2),
		AskPrice:             theoretical * (1 + m.params.TransactionCost + combinedSpread/2),
		ConfidenceScore:      confidence,
		ComponentInstruments: components,
		Weights:              weights,
		CalculationTime:      time.Now(),
	}, nil
}

// CalculateWeights implements Model with an equal-weight fallback; callers
// wanting a custom basket composition should use SetWeights.
func (m *BasketModel) CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error) {
	if len(instruments) == 0 {
		return nil, ModelDomainError{Model: "basket", Reason: "empty basket"}
	}
	w := 1.0 / float64(len(instruments))
	weights := make([]float64, len(instruments))
	for i := range weights {
		weights[i] = w
	}
	return weights, nil
}

// CalculateCorrelation implements Model.
func (m *BasketModel) CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64 {
	return pearsonMidCorrelation(history1, history2)
}

// UpdateParameters implements Model.
func (m *BasketModel) UpdateParameters(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
}
