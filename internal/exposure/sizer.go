package exposure

import (
	"math"

	"github.com/alanyoungcy/polymarketbot/internal/arbitrage"
)

// Sizer computes a position size for an arbitrage opportunity from several
// independent candidates, then clips the smallest to the portfolio's
// leverage and correlation budget. Each candidate method is also exported
// standalone, matching the original sizing interface's individually
// callable Kelly/VaR/volatility formulas.
type Sizer struct {
	params RiskParams
}

// NewSizer constructs a Sizer against the given risk parameters.
func NewSizer(params RiskParams) *Sizer {
	return &Sizer{params: params}
}

// KellySize applies the Kelly criterion clipped to [0, 0.25] of portfolio
// value: f* = (p*b - q) / b, where b is the odds (expectedReturn/volatility
// as payoff-to-risk ratio), p is winProbability, q = 1-p.
func (s *Sizer) KellySize(expectedReturn, volatility, winProbability, portfolioValue float64) float64 {
	if volatility <= 0 || portfolioValue <= 0 {
		return 0
	}
	b := expectedReturn / volatility
	if b <= 0 {
		return 0
	}
	p := winProbability
	q := 1 - p
	f := (p*b - q) / b
	if f < 0 {
		f = 0
	}
	if f > 0.25 {
		f = 0.25
	}
	return f * portfolioValue
}

// VaRBasedSize caps size so that size*perUnitVaR stays within
// maxVarLimit*portfolioValue.
func (s *Sizer) VaRBasedSize(perUnitVaR, maxVarLimit, portfolioValue float64) float64 {
	if perUnitVaR <= 0 {
		return 0
	}
	budget := maxVarLimit * portfolioValue
	if budget <= 0 {
		return 0
	}
	return budget / perUnitVaR
}

// VolatilityAdjustedSize scales a base size by the ratio of a target
// volatility to the instrument's own, so riskier instruments get smaller
// allocations for the same target risk budget.
func (s *Sizer) VolatilityAdjustedSize(volatility, targetVolatility, baseSize float64) float64 {
	if volatility <= 0 {
		return baseSize
	}
	return baseSize * (targetVolatility / volatility)
}

// RiskParitySize splits a notional target evenly across the opportunity's
// legs weighted by the inverse of each leg's absolute weight, so no single
// leg dominates the package's risk contribution.
func (s *Sizer) RiskParitySize(opp arbitrage.Opportunity, portfolioValue float64) float64 {
	if len(opp.Legs) == 0 {
		return 0
	}
	var invWeightSum float64
	for _, leg := range opp.Legs {
		w := math.Abs(leg.Weight)
		if w == 0 {
			w = 1
		}
		invWeightSum += 1 / w
	}
	if invWeightSum <= 0 {
		return 0
	}
	target := s.params.MaxPositionSizePercentage * portfolioValue
	return target / invWeightSum
}

// SharpeOptimalSize scales the risk-parity candidate by the opportunity's
// own Sharpe ratio relative to 1.0, so a package with a weak risk-adjusted
// return gets scaled down rather than sized identically to a strong one.
func (s *Sizer) SharpeOptimalSize(opp arbitrage.Opportunity, portfolioValue float64) float64 {
	base := s.RiskParitySize(opp, portfolioValue)
	if opp.SharpeRatio <= 0 {
		return 0
	}
	scale := opp.SharpeRatio
	if scale > 2 {
		scale = 2
	}
	return base * scale
}

// CalculateOptimalPositionSize is the entry point mirroring the original
// sizing interface: take the minimum of the four independent candidates,
// then apply leverage and correlation adjustments.
func (s *Sizer) CalculateOptimalPositionSize(opp arbitrage.Opportunity, portfolio *Portfolio, params RiskParams) float64 {
	snap := portfolio.Snapshot()
	portfolioValue := snap.TotalExposure
	if portfolioValue <= 0 {
		portfolioValue = 1
	}

	winProbability := opp.ProfitProbability
	if winProbability <= 0 {
		winProbability = 0.5
	}
	volatility := opp.CorrelationRisk
	if volatility <= 0 {
		volatility = 0.01
	}
	kelly := s.KellySize(opp.ExpectedProfit, volatility, winProbability, portfolioValue)

	perUnitVaR := opp.ValueAtRisk
	if opp.TotalVolume > 0 {
		perUnitVaR = opp.ValueAtRisk / opp.TotalVolume
	}
	varBased := s.VaRBasedSize(perUnitVaR, params.MaxIndividualVaR, portfolioValue)

	volAdjusted := s.VolatilityAdjustedSize(volatility, 0.01, portfolioValue*params.MaxPositionSizePercentage)

	riskParity := s.RiskParitySize(opp, portfolioValue)

	size := math.Min(math.Min(kelly, varBased), math.Min(volAdjusted, riskParity))
	if size <= 0 {
		return 0
	}

	size = s.ApplyLeverageAdjustedSize(size, portfolio.CurrentLeverage(), params.MaxLeverage)
	size = s.ApplyCorrelationAdjustedSize(size, snap.CorrelationRisk, params.MaxCorrelationRisk)
	return size
}

// ApplyLeverageAdjustedSize shrinks a proposed size proportionally to how
// close the portfolio already sits to its leverage cap; a portfolio at or
// above the cap gets a zero-size result.
func (s *Sizer) ApplyLeverageAdjustedSize(baseSize, currentLeverage, maxLeverage float64) float64 {
	if maxLeverage <= 0 {
		return 0
	}
	headroom := 1 - currentLeverage/maxLeverage
	if headroom <= 0 {
		return 0
	}
	return baseSize * headroom
}

// ApplyCorrelationAdjustedSize scales a proposed size down by
// 1-correlationExposure/maxCorrelation, the same factor used for the
// portfolio-level correlation scaling.
func (s *Sizer) ApplyCorrelationAdjustedSize(baseSize, correlationExposure, maxCorrelation float64) float64 {
	if maxCorrelation <= 0 {
		return 0
	}
	scale := 1 - correlationExposure/maxCorrelation
	if scale < 0 {
		scale = 0
	}
	return baseSize * scale
}
