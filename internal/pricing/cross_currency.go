package pricing

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// CrossCurrencyModel synthesizes an A/C quote by chaining an A/B and a B/C
// leg: synthetic_mid = legAB.mid * legBC.mid, with an invert flag for legs
// quoted in the opposite direction (B/A instead of A/B).
type CrossCurrencyModel struct {
	mu      sync.Mutex
	params  Params
	inverts map[string]bool
}

// NewCrossCurrencyModel constructs a model with the given parameters.
func NewCrossCurrencyModel(params Params) *CrossCurrencyModel {
	return &CrossCurrencyModel{params: params, inverts: make(map[string]bool)}
}

// SetInverted marks an instrument key as quoted inverse to the triangulation
// direction (e.g. a B/A feed used where an A/B leg is needed).
func (m *CrossCurrencyModel) SetInverted(instrumentKey string, inverted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inverts[instrumentKey] = inverted
}

func (m *CrossCurrencyModel) legMid(q market.Quote) float64 {
	m.mu.Lock()
	inverted := m.inverts[q.InstrumentID.String()]
	m.mu.Unlock()
	mid := q.Mid()
	if inverted && mid != 0 {
		return 1 / mid
	}
	return mid
}

// CalculateSyntheticPrice implements Model. components must contain
// exactly two legs: [A/B, B/C], each independently invertible via
// SetInverted.
func (m *CrossCurrencyModel) CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error) {
	if len(components) != 2 {
		return SyntheticPrice{}, ModelDomainError{Model: "cross_currency", Reason: "expected exactly two triangulation legs"}
	}
	legAB, ok := snap.Quote(components[0])
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "cross_currency", Reason: "leg missing: " + components[0]}
	}
	legBC, ok := snap.Quote(components[1])
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "cross_currency", Reason: "leg missing: " + components[1]}
	}

	midAB := m.legMid(legAB)
	midBC := m.legMid(legBC)
	theoretical := midAB * midBC

	spreadAB := legAB.SpreadRatio()
	spreadBC := legBC.SpreadRatio()
	combinedSpread := spreadAB + spreadBC

	oldest := legAB.Timestamp
	if legBC.Timestamp.Before(oldest) {
		oldest = legBC.Timestamp
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
		ComponentInstruments: []string{components[0], components[1]},
		Weights:              []float64{1.0, 1.0},
		CalculationTime:      time.Now(),
	}, nil
}

// CalculateWeights implements Model: both legs contribute equally to the
// triangulated mid.
func (m *CrossCurrencyModel) CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error) {
	weights := make([]float64, len(instruments))
	for i := range weights {
		weights[i] = 1.0
	}
	return weights, nil
}

// CalculateCorrelation implements Model.
func (m *CrossCurrencyModel) CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64 {
	return pearsonMidCorrelation(history1, history2)
}

// UpdateParameters implements Model.
func (m *CrossCurrencyModel) UpdateParameters(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
}
