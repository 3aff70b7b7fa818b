package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// ForwardsModel prices a forward/future via cost-of-carry:
// forward = spot_mid * exp((r - q) * tau), basis = quoted_future - forward.
type ForwardsModel struct {
	mu             sync.Mutex
	params         Params
	interestRates  map[string]float64
	dividendYields map[string]float64
	maturities     map[string]time.Time
}

// NewForwardsModel constructs a model with the given parameters.
func NewForwardsModel(params Params) *ForwardsModel {
	return &ForwardsModel{
		params:         params,
		interestRates:  make(map[string]float64),
		dividendYields: make(map[string]float64),
		maturities:     make(map[string]time.Time),
	}
}

// SetInterestRate records the per-instrument risk-free rate r.
func (m *ForwardsModel) SetInterestRate(instrumentKey string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interestRates[instrumentKey] = rate
}

// SetDividendYield records the per-instrument dividend/borrow yield q.
func (m *ForwardsModel) SetDividendYield(instrumentKey string, yield float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dividendYields[instrumentKey] = yield
}

// SetMaturity records the expiry time used to derive time-to-maturity.
func (m *ForwardsModel) SetMaturity(instrumentKey string, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maturities[instrumentKey] = expiry
}

func (m *ForwardsModel) timeToMaturity(instrumentKey string, asOf time.Time) (float64, error) {
	m.mu.Lock()
	expiry, ok := m.maturities[instrumentKey]
	m.mu.Unlock()
	if !ok {
		return 0, ModelDomainError{Model: "forwards", Reason: "no maturity set for " + instrumentKey}
	}
	tau := expiry.Sub(asOf).Hours() / (24 * 365)
	if tau <= 0 {
		return 0, ModelDomainError{Model: "forwards", Reason: "non-positive time to maturity"}
	}
	return tau, nil
}

// CalculateCostOfCarry returns (r - q) for the given instrument.
func (m *ForwardsModel) CalculateCostOfCarry(instrumentKey string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interestRates[instrumentKey] - m.dividendYields[instrumentKey]
}

// CalculateForwardPrice returns spot_mid * exp(costOfCarry * tau).
func (m *ForwardsModel) CalculateForwardPrice(spotMid, costOfCarry, tau float64) float64 {
	return spotMid * math.Exp(costOfCarry*tau)
}

// CalculateBasis returns quoted_future - forward for the given quotes.
func (m *ForwardsModel) CalculateBasis(futureQuote, spotQuote market.Quote, tau float64) float64 {
	carry := m.interestRates[futureQuote.InstrumentID.String()] - m.dividendYields[futureQuote.InstrumentID.String()]
	forward := m.CalculateForwardPrice(spotQuote.Mid(), carry, tau)
	return futureQuote.Mid() - forward
}

// CalculateSyntheticPrice implements Model. components must contain
// exactly one spot instrument key.
func (m *ForwardsModel) CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error) {
	if len(components) != 1 {
		return SyntheticPrice{}, ModelDomainError{Model: "forwards", Reason: "expected exactly one spot component"}
	}
	spotKey := components[0]
	spotQuote, ok := snap.Quote(spotKey)
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "forwards", Reason: "spot quote missing: " + spotKey}
	}
	tau, err := m.timeToMaturity(target, snap.SnapshotTime())
	if err != nil {
		return SyntheticPrice{}, err
	}
	carry := m.CalculateCostOfCarry(target)
	theoretical := m.CalculateForwardPrice(spotQuote.Mid(), carry, tau)

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

// CalculateWeights implements Model.
func (m *ForwardsModel) CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error) {
	weights := make([]float64, len(instruments))
	for i := range weights {
		weights[i] = 1.0
	}
	return weights, nil
}

// CalculateCorrelation implements Model.
func (m *ForwardsModel) CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64 {
	return pearsonMidCorrelation(history1, history2)
}

// UpdateParameters implements Model.
func (m *ForwardsModel) UpdateParameters(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
}
