package arbitrage

import (
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// minTimingHeadroom is the minimum time-to-expiry required for an
// opportunity to still be worth validating.
const minTimingHeadroom = 5 * time.Minute

// validateLiquidity requires the opposing top-of-book depth at each leg's
// entry price to cover the leg's size: a buy leg consumes ask depth, a
// sell leg consumes bid depth.
func validateLiquidity(legs []Leg, snap market.MarketSnapshot) error {
	for _, leg := range legs {
		depth, ok := snap.Depth(leg.InstrumentID)
		if !ok {
			return ValidationFailure{Kind: FailureLiquidity, Detail: "no depth for " + leg.InstrumentID}
		}
		side := market.TradeBuy
		if leg.Side == SideAsk {
			side = market.TradeSell
		}
		available := depth.DepthAtPrice(side, leg.EntryPrice)
		if available < leg.Size {
			return ValidationFailure{Kind: FailureLiquidity, Detail: "insufficient depth at " + leg.InstrumentID}
		}
	}
	return nil
}

// validateRiskLimits checks expected profit against total cost, VaR against
// risk-per-trade, correlation risk, and market impact, each relative to
// params.
func validateRiskLimits(o Opportunity, params Params) error {
	if o.ExpectedProfit < params.MinProfitThreshold*o.TotalCost {
		return ValidationFailure{Kind: FailureRisk, Detail: "expected profit below minimum threshold"}
	}
	if o.ValueAtRisk > params.MaxRiskPerTrade*o.TotalCost {
		return ValidationFailure{Kind: FailureRisk, Detail: "value at risk exceeds per-trade limit"}
	}
	if o.CorrelationRisk > params.MaxCorrelationRisk {
		return ValidationFailure{Kind: FailureRisk, Detail: "correlation risk exceeds limit"}
	}
	if o.MarketImpact > params.MaxMarketImpact {
		return ValidationFailure{Kind: FailureRisk, Detail: "market impact exceeds limit"}
	}
	return nil
}

// validateTiming requires the opportunity to still be unexpired with
// sufficient headroom to act on it.
func validateTiming(o Opportunity, now time.Time) error {
	if !now.Before(o.ExpiryTime) {
		return ValidationFailure{Kind: FailureTiming, Detail: "opportunity already expired"}
	}
	if o.ExpiryTime.Sub(now) < minTimingHeadroom {
		return ValidationFailure{Kind: FailureTiming, Detail: "insufficient headroom before expiry"}
	}
	return nil
}

// validateExecutionFeasibility checks aggregate position size against the
// configured cap and the estimated slippage against its cap.
func validateExecutionFeasibility(o Opportunity, params Params) error {
	var notional float64
	for _, leg := range o.Legs {
		notional += leg.Size * leg.EntryPrice
	}
	if notional > params.MaxPositionSize {
		return ValidationFailure{Kind: FailureFeasibility, Detail: "position size exceeds cap"}
	}
	if o.SlippageEstimate > params.MaxSlippage {
		return ValidationFailure{Kind: FailureFeasibility, Detail: "slippage estimate exceeds cap"}
	}
	return nil
}

// validate runs all four gates in order, returning the first failure.
func validate(o Opportunity, snap market.MarketSnapshot, params Params, now time.Time) error {
	if err := validateLiquidity(o.Legs, snap); err != nil {
		return err
	}
	if err := validateRiskLimits(o, params); err != nil {
		return err
	}
	if err := validateTiming(o, now); err != nil {
		return err
	}
	if err := validateExecutionFeasibility(o, params); err != nil {
		return err
	}
	return nil
}
