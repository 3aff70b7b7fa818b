// Package pricing implements the six synthetic-pricing model variants that
// share one contract: calculate a synthetic price for a target instrument
// from its components, the weights behind that synthesis, pairwise
// correlation from history, and parameter updates.
package pricing

import (
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// Params holds the parameters shared by every pricing model. Individual
// models may hold additional state (funding rates, interest rates,
// volatility surfaces) beyond this shared set.
type Params struct {
	CorrelationThreshold float64
	VolatilityAdjustment float64
	LiquidityPenalty     float64
	TransactionCost      float64
	LookbackPeriod       int
	ConfidenceInterval   float64
}

// DefaultParams mirrors the source's compiled-in defaults, now runtime
// configuration rather than constants.
func DefaultParams() Params {
	return Params{
		CorrelationThreshold: 0.8,
		VolatilityAdjustment: 0.05,
		LiquidityPenalty:     0.001,
		TransactionCost:      0.0001,
		LookbackPeriod:       100,
		ConfidenceInterval:   0.95,
	}
}

// SyntheticPrice is a model's theoretical price for a target instrument,
// synthesized from a weighted set of components.
//
// Invariant: len(ComponentInstruments) == len(Weights). The sum of
// weights is model-specific: 1.0 for a basket, an arbitrary sign pattern
// for a spread.
type SyntheticPrice struct {
	TheoreticalPrice      float64
	BidPrice              float64
	AskPrice              float64
	ConfidenceScore       float64 // in [0, 1]
	ComponentInstruments  []string
	Weights               []float64
	CalculationTime       time.Time
}

// Model is the shared contract every pricing variant implements.
type Model interface {
	// CalculateSyntheticPrice synthesizes the target instrument's
	// theoretical price from the given components using the snapshot.
	CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error)

	// CalculateWeights returns the weight assigned to each instrument in
	// order; len(result) == len(instruments).
	CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error)

	// CalculateCorrelation returns Pearson correlation in [-1, 1] between
	// two instruments' historical quotes (paired by index; callers align
	// the series).
	CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64

	// UpdateParameters replaces the model's shared parameter set.
	UpdateParameters(params Params)
}

// ModelDomainError signals a mathematically invalid input to a pricing
// model: negative time-to-maturity, non-positive volatility, and similar.
// The caller skips the affected opportunity rather than treating this as
// fatal.
type ModelDomainError struct {
	Model  string
	Reason string
}

func (e ModelDomainError) Error() string {
	return "model domain error in " + e.Model + ": " + e.Reason
}
