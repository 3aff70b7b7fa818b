// Package exposure sizes arbitrage positions against portfolio risk limits
// and tracks the resulting portfolio's aggregate exposure and risk metrics.
package exposure

import (
	"time"
)

// PositionSide is the directional stance of a tracked position.
type PositionSide string

const (
	SideLong    PositionSide = "LONG"
	SideShort   PositionSide = "SHORT"
	SideNeutral PositionSide = "NEUTRAL"
)

// RiskLevel buckets a position's assessed severity for reporting and for
// deciding which positions an emergency reduction should touch first.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// Position is one open leg of an executed arbitrage opportunity, carried in
// a Portfolio with its own risk metrics independent of the opportunity that
// spawned it.
type Position struct {
	ID           string
	InstrumentID string
	Side         PositionSide
	Size         float64
	EntryPrice   float64
	CurrentPrice float64
	UnrealizedPnL float64
	RealizedPnL   float64

	ValueAtRisk        float64
	ExpectedShortfall  float64
	MaximumDrawdown    float64
	ExposureAmount     float64
	MarginRequirement  float64

	EntryTime  time.Time
	LastUpdate time.Time
}

// Notional returns size*current_price, the position's gross exposure.
func (p Position) Notional() float64 {
	return p.Size * p.CurrentPrice
}

// RiskParams mirrors the sizing and risk limits applied across the
// portfolio; distinct from arbitrage.Params, which gates a single
// opportunity rather than the whole book.
type RiskParams struct {
	MaxPositionSizePercentage float64 // fraction of portfolio value per position
	MaxPortfolioVaR           float64 // fraction of portfolio value
	MaxIndividualVaR          float64 // fraction of portfolio value per position
	MaxCorrelationRisk        float64
	MaxLeverage               float64
	MarginRequirementMultiple float64
	StopLossPercentage        float64
	TakeProfitPercentage      float64
	MaxDrawdownThreshold      float64
	LiquidityRequirement      float64
}

// DefaultRiskParams returns the conservative defaults carried over from the
// original risk configuration.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		MaxPositionSizePercentage: 0.05,
		MaxPortfolioVaR:           0.02,
		MaxIndividualVaR:          0.01,
		MaxCorrelationRisk:        0.3,
		MaxLeverage:               3.0,
		MarginRequirementMultiple: 1.2,
		StopLossPercentage:        0.05,
		TakeProfitPercentage:      0.15,
		MaxDrawdownThreshold:      0.1,
		LiquidityRequirement:      0.8,
	}
}

// AssessRiskLevel buckets a position by how much of its allotted individual
// VaR budget it has consumed.
func AssessRiskLevel(pos Position, params RiskParams, portfolioValue float64) RiskLevel {
	if portfolioValue <= 0 {
		return RiskExtreme
	}
	budget := params.MaxIndividualVaR * portfolioValue
	if budget <= 0 {
		return RiskExtreme
	}
	ratio := pos.ValueAtRisk / budget
	switch {
	case ratio >= 1.0:
		return RiskExtreme
	case ratio >= 0.75:
		return RiskHigh
	case ratio >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}
