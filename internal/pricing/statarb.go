package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// bollingerK is the number of standard deviations used for the upper and
// lower bands.
const bollingerK = 2.0

// StatArbSignalKind classifies a spread relative to its historical bands.
type StatArbSignalKind string

const (
	SignalLongSpread  StatArbSignalKind = "LONG_SPREAD"
	SignalShortSpread StatArbSignalKind = "SHORT_SPREAD"
	SignalNeutral     StatArbSignalKind = "NEUTRAL"
)

// StatArbitrageSignal reports a mean-reversion trading signal for a
// cointegrated pair's spread, supplementing the shared Model contract with
// the half-life and kind fields the original statistical arbitrage engine
// tracked alongside its synthetic price.
type StatArbitrageSignal struct {
	Kind          StatArbSignalKind
	SpreadZScore  float64
	HalfLifeBars  float64
	Mean          float64
	UpperBand     float64
	LowerBand     float64
	GeneratedAt   time.Time
}

// StatArbModel prices the spread between two historically correlated
// instruments against a rolling mean and Bollinger bands, and classifies
// its current z-score into a trading signal.
type StatArbModel struct {
	mu      sync.Mutex
	params  Params
	history map[string][]float64
}

// NewStatArbModel constructs a model with the given parameters.
func NewStatArbModel(params Params) *StatArbModel {
	return &StatArbModel{params: params, history: make(map[string][]float64)}
}

// RecordSpread appends a spread observation for a pair key, trimming to
// LookbackPeriod entries.
func (m *StatArbModel) RecordSpread(pairKey string, spread float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := append(m.history[pairKey], spread)
	if len(h) > m.params.LookbackPeriod {
		h = h[len(h)-m.params.LookbackPeriod:]
	}
	m.history[pairKey] = h
}

func (m *StatArbModel) snapshot(pairKey string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[pairKey]
	out := make([]float64, len(h))
	copy(out, h)
	return out
}

// CalculateBollingerBands returns (mean, upper, lower) for the recorded
// spread history of pairKey.
func (m *StatArbModel) CalculateBollingerBands(pairKey string) (meanOut, upper, lower float64) {
	h := m.snapshot(pairKey)
	mu := mean(h)
	sd := stddev(h)
	return mu, mu + bollingerK*sd, mu - bollingerK*sd
}

// CalculateHalfLife estimates the Ornstein-Uhlenbeck mean-reversion
// half-life in bars via an AR(1) regression of spread changes on levels:
// delta(s_t) = lambda * s_t-1, half_life = -ln(2) / lambda.
func (m *StatArbModel) CalculateHalfLife(pairKey string) float64 {
	h := m.snapshot(pairKey)
	if len(h) < 3 {
		return math.Inf(1)
	}
	levels := h[:len(h)-1]
	deltas := make([]float64, len(levels))
	for i := range levels {
		deltas[i] = h[i+1] - h[i]
	}
	lambda := regressSlope(levels, deltas)
	if lambda >= 0 {
		return math.Inf(1)
	}
	return -math.Ln2 / lambda
}

func regressSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var num, den float64
	for i := range xs {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// GenerateSignal classifies the current spread against its rolling mean
// and Bollinger bands into LONG_SPREAD (spread below lower band, expect
// reversion up), SHORT_SPREAD (above upper band), or NEUTRAL.
func (m *StatArbModel) GenerateSignal(pairKey string, currentSpread float64) StatArbitrageSignal {
	h := m.snapshot(pairKey)
	meanVal, upper, lower := m.CalculateBollingerBands(pairKey)
	z := zScore(currentSpread, h)

	kind := SignalNeutral
	switch {
	case currentSpread < lower:
		kind = SignalLongSpread
	case currentSpread > upper:
		kind = SignalShortSpread
	}

	return StatArbitrageSignal{
		Kind:         kind,
		SpreadZScore: z,
		HalfLifeBars: m.CalculateHalfLife(pairKey),
		Mean:         meanVal,
		UpperBand:    upper,
		LowerBand:    lower,
		GeneratedAt:  time.Now(),
	}
}

// CalculateSyntheticPrice implements Model. components must contain
// exactly two legs whose spread (mid1 - mid2) is tracked against its
// rolling mean; the theoretical price is the mean-reverted spread target
// expressed as leg1's price implied by leg2 plus the historical mean
// spread.
func (m *StatArbModel) CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error) {
	if len(components) != 2 {
		return SyntheticPrice{}, ModelDomainError{Model: "statarb", Reason: "expected exactly two paired legs"}
	}
	q1, ok := snap.Quote(components[0])
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "statarb", Reason: "leg missing: " + components[0]}
	}
	q2, ok := snap.Quote(components[1])
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "statarb", Reason: "leg missing: " + components[1]}
	}

	pairKey := components[0] + "|" + components[1]
	spread := q1.Mid() - q2.Mid()
	m.RecordSpread(pairKey, spread)

	meanVal, _, _ := m.CalculateBollingerBands(pairKey)
	theoretical := q2.Mid() + meanVal

	oldest := q1.Timestamp
	if q2.Timestamp.Before(oldest) {
		oldest = q2.Timestamp
	}
	h := m.snapshot(pairKey)

	confidence := calculateConfidence(confidenceInputs{
		age:             time.Since(oldest),
		stalenessBudget: market.DefaultStalenessBudget,
		spreadRatio:     q1.SpreadRatio() + q2.SpreadRatio(),
		maxSpreadRatio:  0.02,
		sampleSize:      len(h),
		lookbackPeriod:  m.params.LookbackPeriod,
	})

	return SyntheticPrice{
		TheoreticalPrice:     theoretical,
		BidPrice:             theoretical * (1 - m.params.TransactionCost),
		AskPrice:             theoretical * (1 + m.params.TransactionCost),
		ConfidenceScore:      confidence,
		ComponentInstruments: []string{components[0], components[1]},
		Weights:              []float64{1.0, -1.0},
		CalculationTime:      time.Now(),
	}, nil
}

// CalculateWeights implements Model: a statistical arbitrage spread is
// long the first leg and short the second.
func (m *StatArbModel) CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error) {
	weights := make([]float64, len(instruments))
	for i := range weights {
		if i == 0 {
			weights[i] = 1.0
		} else {
			weights[i] = -1.0
		}
	}
	return weights, nil
}

// CalculateCorrelation implements Model.
func (m *StatArbModel) CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64 {
	return pearsonMidCorrelation(history1, history2)
}

// UpdateParameters implements Model.
func (m *StatArbModel) UpdateParameters(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
}
