package exposure

import (
	"fmt"
	"log/slog"
	"sync"
)

// Portfolio tracks open positions and their aggregate exposure and risk
// metrics. Concurrent callers share one Portfolio safely.
type Portfolio struct {
	mu        sync.Mutex
	ID        string
	Positions map[string]Position

	TotalExposure   float64
	NetExposure     float64
	GrossExposure   float64
	TotalPnL        float64
	TotalVaR        float64
	SharpeRatio     float64
	CorrelationRisk float64

	pnlHistory []float64
	risk       *RiskCalculator
	params     RiskParams
	logger     *slog.Logger
}

// NewPortfolio constructs an empty portfolio against the given risk
// parameters and calculator.
func NewPortfolio(id string, params RiskParams, risk *RiskCalculator, logger *slog.Logger) *Portfolio {
	return &Portfolio{
		ID:        id,
		Positions: make(map[string]Position),
		params:    params,
		risk:      risk,
		logger:    logger.With(slog.String("component", "exposure_portfolio"), slog.String("portfolio_id", id)),
	}
}

// AddPosition inserts or replaces a position and recomputes aggregate
// metrics.
func (p *Portfolio) AddPosition(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Positions[pos.ID] = pos
	p.recomputeLocked()
}

// ClosePosition removes a position, folding its realized P&L into the
// portfolio's running history before recomputing metrics.
func (p *Portfolio) ClosePosition(positionID string) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.Positions[positionID]
	if !ok {
		return Position{}, fmt.Errorf("exposure: position not found: %s", positionID)
	}
	delete(p.Positions, positionID)
	p.pnlHistory = append(p.pnlHistory, pos.RealizedPnL)
	p.recomputeLocked()
	return pos, nil
}

// UpdateMarketData refreshes current prices on every open position whose
// instrument appears in the given map, then recomputes aggregate metrics.
// Unrealized P&L is recomputed long-positive, short-negative.
func (p *Portfolio) UpdateMarketData(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, pos := range p.Positions {
		price, ok := prices[pos.InstrumentID]
		if !ok {
			continue
		}
		pos.CurrentPrice = price
		delta := price - pos.EntryPrice
		if pos.Side == SideShort {
			delta = -delta
		}
		pos.UnrealizedPnL = delta * pos.Size
		if p.risk != nil {
			p.risk.RecordPrice(pos.InstrumentID, price)
			pos.ValueAtRisk = p.risk.CalculateValueAtRisk(pos, 0.95, 1)
			pos.ExpectedShortfall = p.risk.CalculateExpectedShortfall(pos, 0.95)
		}
		p.Positions[id] = pos
	}
	p.recomputeLocked()
}

// recomputeLocked refreshes the portfolio's aggregate fields from its
// current position set. Callers must hold p.mu.
func (p *Portfolio) recomputeLocked() {
	var gross, net, pnl float64
	positions := make([]Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		notional := pos.Notional()
		gross += notional
		if pos.Side == SideShort {
			net -= notional
		} else {
			net += notional
		}
		pnl += pos.UnrealizedPnL + pos.RealizedPnL
		positions = append(positions, pos)
	}
	p.GrossExposure = gross
	p.NetExposure = net
	p.TotalExposure = gross
	p.TotalPnL = pnl

	if p.risk != nil {
		p.TotalVaR = p.risk.CalculatePortfolioVaR(positions, 0.95)
		p.CorrelationRisk = p.risk.CalculateCorrelationRisk(positions)
	}
	p.SharpeRatio = sharpeRatio(p.pnlHistory)
}

// Snapshot returns a defensive copy of the portfolio's scalar aggregate
// metrics, safe for a caller (such as the sizer) to read without racing
// recomputeLocked.
func (p *Portfolio) Snapshot() Portfolio {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Portfolio{
		ID:              p.ID,
		TotalExposure:   p.TotalExposure,
		NetExposure:     p.NetExposure,
		GrossExposure:   p.GrossExposure,
		TotalPnL:        p.TotalPnL,
		TotalVaR:        p.TotalVaR,
		SharpeRatio:     p.SharpeRatio,
		CorrelationRisk: p.CorrelationRisk,
	}
}

// CurrentLeverage returns gross exposure as a multiple of net exposure's
// absolute value, the book's working leverage ratio. A flat book (zero net
// exposure) reports zero rather than dividing by zero.
func (p *Portfolio) CurrentLeverage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NetExposure == 0 {
		return 0
	}
	lev := p.GrossExposure / abs(p.NetExposure)
	return lev
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// sharpeRatio computes mean/stddev over a P&L history, 0 with fewer than
// two samples or zero variance.
func sharpeRatio(pnlHistory []float64) float64 {
	n := len(pnlHistory)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range pnlHistory {
		mean += v
	}
	mean /= float64(n)
	sd := stddev(pnlHistory)
	if sd == 0 {
		return 0
	}
	return mean / sd
}

// PositionsByRiskLevel filters the open position set to those the given
// risk level would bucket into.
func (p *Portfolio) PositionsByRiskLevel(level RiskLevel) []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Position
	for _, pos := range p.Positions {
		if AssessRiskLevel(pos, p.params, p.TotalExposure) == level {
			out = append(out, pos)
		}
	}
	return out
}

// CheckRiskLimits returns the set of limits the portfolio currently
// breaches, empty when all constraints hold.
func (p *Portfolio) CheckRiskLimits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var violations []string
	if p.TotalExposure > 0 && p.TotalVaR > p.params.MaxPortfolioVaR*p.TotalExposure {
		violations = append(violations, "portfolio VaR exceeds limit")
	}
	if p.CorrelationRisk > p.params.MaxCorrelationRisk {
		violations = append(violations, "correlation risk exceeds limit")
	}
	if p.CurrentLeverageLocked() > p.params.MaxLeverage {
		violations = append(violations, "leverage exceeds limit")
	}
	return violations
}

// CurrentLeverageLocked is CurrentLeverage's body without re-acquiring the
// mutex, for callers that already hold it.
func (p *Portfolio) CurrentLeverageLocked() float64 {
	if p.NetExposure == 0 {
		return 0
	}
	return p.GrossExposure / abs(p.NetExposure)
}

// EmergencyRiskReduction halves the size of every open position, the
// blunt response to a breached risk limit: it does not pick which
// positions to cut, it cuts all of them equally. Returns the updated
// positions so a caller can route reduce orders to an execution system.
func (p *Portfolio) EmergencyRiskReduction() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Warn("emergency risk reduction triggered", slog.Int("position_count", len(p.Positions)))
	reduced := make([]Position, 0, len(p.Positions))
	for id, pos := range p.Positions {
		pos.Size /= 2
		p.Positions[id] = pos
		reduced = append(reduced, pos)
	}
	p.recomputeLocked()
	return reduced
}
