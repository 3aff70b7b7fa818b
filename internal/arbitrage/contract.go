// Package arbitrage turns a mispricing opportunity into a multi-leg,
// risk-annotated arbitrage opportunity and carries it through a strict
// state machine from identification to a terminal status.
package arbitrage

import (
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
)

// Side is which side of the book a leg trades.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Status is a position in the opportunity state machine.
type Status string

const (
	StatusIdentified Status = "IDENTIFIED"
	StatusValidated  Status = "VALIDATED"
	StatusExecuting  Status = "EXECUTING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
)

// Type classifies the arbitrage by the mispricing detector that sourced it.
// The source catalog already fixes a six-way taxonomy (internal/mispricing
// detector types); re-tagging it here instead of inventing a parallel
// ArbitrageType enum keeps the two packages from drifting out of sync.
type Type = mispricing.Type

// Leg is one instrument's side of a multi-leg opportunity.
type Leg struct {
	InstrumentID string
	Side         Side
	Size         float64
	EntryPrice   float64
	ExitPrice    float64
	Weight       float64
	EntryTime    time.Time
	ExitTime     time.Time
}

// Opportunity is a multi-leg arbitrage candidate derived from a mispricing
// detection, annotated with financial and risk metrics and carried through
// the status state machine.
type Opportunity struct {
	ID     string
	Type   Type
	Status Status

	Legs             []Leg
	MispricingSource mispricing.Opportunity

	ExpectedProfit   float64
	MaxLoss          float64
	ProfitProbability float64
	BreakEvenPrice   float64
	TotalCost        float64
	NetExposure      float64

	ValueAtRisk       float64
	ExpectedShortfall float64
	SharpeRatio       float64
	MaxDrawdown       float64
	CorrelationRisk   float64

	IdentificationTime time.Time
	ValidationTime     time.Time
	ExpiryTime         time.Time
	EstimatedDuration  time.Duration

	SlippageEstimate float64
	TransactionCosts float64
	TotalVolume      float64
	MarketImpact     float64

	FailureReason string
}

// Params holds the arbitrage engine's configurable thresholds, with the
// defaults from the governing specification.
type Params struct {
	MinProfitThreshold      float64
	MaxRiskPerTrade         float64
	MaxCorrelationRisk      float64
	MaxMarketImpact         float64
	MaxSlippage             float64
	MaxPositionSize         float64
	MaxHoldingPeriod        time.Duration
	MinLiquidityRequirement float64
	ConfidenceThreshold     float64
}

// DefaultParams returns the baseline arbitrage engine thresholds.
func DefaultParams() Params {
	return Params{
		MinProfitThreshold:      0.001,
		MaxRiskPerTrade:         0.02,
		MaxCorrelationRisk:      0.3,
		MaxMarketImpact:         0.005,
		MaxSlippage:             0.001,
		MaxPositionSize:         1_000_000.0,
		MaxHoldingPeriod:        60 * time.Minute,
		MinLiquidityRequirement: 100_000.0,
		ConfidenceThreshold:     0.8,
	}
}

// Callback is invoked once per opportunity that passes validation.
type Callback func(Opportunity)

// UpdateCallback is invoked on every status transition, validated or not.
type UpdateCallback func(Opportunity)

// ValidationFailureKind names which validation gate rejected an opportunity.
type ValidationFailureKind string

const (
	FailureLiquidity   ValidationFailureKind = "liquidity"
	FailureRisk        ValidationFailureKind = "risk"
	FailureTiming      ValidationFailureKind = "timing"
	FailureFeasibility ValidationFailureKind = "feasibility"
)

// ValidationFailure reports why an opportunity failed validation. It is a
// normal, expected outcome (the opportunity transitions to Failed), not a
// fatal error.
type ValidationFailure struct {
	Kind   ValidationFailureKind
	Detail string
}

func (e ValidationFailure) Error() string {
	return "validation failure (" + string(e.Kind) + "): " + e.Detail
}
