package pricing

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// defaultFundingRateBps is the fallback funding rate (1 bp) used when no
// funding rate has been recorded for an instrument yet.
const defaultFundingRateBps = 0.0001

// PerpetualModel prices a perpetual swap from its spot reference and
// funding rate: theoretical = spot_mid * (1 + funding_rate), basis =
// perp_mid - spot_mid.
type PerpetualModel struct {
	mu     sync.Mutex
	params Params
	rates  map[string]market.FundingRate
}

// NewPerpetualModel constructs a model with the given parameters.
func NewPerpetualModel(params Params) *PerpetualModel {
	return &PerpetualModel{params: params, rates: make(map[string]market.FundingRate)}
}

// UpdateFundingRate records the latest funding rate for an instrument.
func (m *PerpetualModel) UpdateFundingRate(rate market.FundingRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rate.InstrumentID.String()] = rate
}

// CurrentFundingRate returns the stored rate, or the 1bp default.
func (m *PerpetualModel) CurrentFundingRate(instrumentKey string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rates[instrumentKey]; ok {
		return r.Rate
	}
	return defaultFundingRateBps
}

// CalculateFundingPayment returns the payment owed for holding
// positionSize units at the current funding rate.
func (m *PerpetualModel) CalculateFundingPayment(instrumentKey string, positionSize float64) float64 {
	return positionSize * m.CurrentFundingRate(instrumentKey)
}

// CalculateSyntheticPrice implements Model. components must contain
// exactly one spot instrument key.
func (m *PerpetualModel) CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error) {
	if len(components) != 1 {
		return SyntheticPrice{}, ModelDomainError{Model: "perpetual", Reason: "expected exactly one spot component"}
	}
	spotKey := components[0]
	spotQuote, ok := snap.Quote(spotKey)
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "perpetual", Reason: "spot quote missing: " + spotKey}
	}
	fundingRate := m.CurrentFundingRate(target)
	theoretical := spotQuote.Mid() * (1 + fundingRate)

	confidence := calculateConfidence(confidenceInputs{
		age:             time.Since(spotQuote.Timestamp),
		stalenessBudget: market.DefaultStalenessBudget,
		spreadRatio:     spotQuote.SpreadRatio(),
		maxSpreadRatio:  0.02,
		sampleSize:      m.params.LookbackPeriod,
		lookbackPeriod:  m.params.LookbackPeriod,
	})

	return SyntheticPrice{
		TheoreticalPrice:     theoretical,
		BidPrice:             theoretical * (1 - m.params.TransactionCost),
		AskPrice:             theoretical * (1 + m.params.TransactionCost),
		ConfidenceScore:      confidence,
		ComponentInstruments: []string{spotKey},
		Weights:              []float64{1.0},
		CalculationTime:      time.Now(),
	}, nil
}

// CalculateBasis returns perp_mid - spot_mid for the given quotes.
func (m *PerpetualModel) CalculateBasis(spot, perp market.Quote) float64 {
	return perp.Mid() - spot.Mid()
}

// CalculateWeights implements Model: perpetual basis has a single
// unit-weight component.
func (m *PerpetualModel) CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error) {
	weights := make([]float64, len(instruments))
	for i := range weights {
		weights[i] = 1.0
	}
	return weights, nil
}

// CalculateCorrelation implements Model using Pearson correlation of mid
// prices between two paired quote histories.
func (m *PerpetualModel) CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64 {
	return pearsonMidCorrelation(history1, history2)
}

// UpdateParameters implements Model.
func (m *PerpetualModel) UpdateParameters(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
}
