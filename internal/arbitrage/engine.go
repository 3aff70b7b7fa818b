package arbitrage

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
)

// PortfolioSigmaSource returns the legs' joint volatility, typically from a
// basket pricing model's CalculatePortfolioVolatility. Returning <=0 falls
// back to the conservative default in calculateValueAtRisk.
type PortfolioSigmaSource func(legs []Leg) float64

// CorrelationSource returns the pairwise correlation between two
// instruments, or NaN when unknown.
type CorrelationSource func(a, b string) float64

// PositionSizer returns the leg size to use for an opportunity, evaluated
// against a preliminary build of its legs and risk metrics at baseSize.
// Returning <=0 leaves the preliminary (baseSize) sizing in place.
type PositionSizer func(prelim Opportunity) float64

// Engine consumes mispricing detections and turns each into a validated,
// risk-annotated, multi-leg Opportunity. A single engine instance is the
// serialized owner of validation and state transitions; concurrent callers
// share it safely but transitions never interleave.
type Engine struct {
	mu     sync.Mutex
	params Params
	active map[string]Opportunity

	idGen    IDGenerator
	baseSize float64

	sigmaOf       PortfolioSigmaSource
	correlationOf CorrelationSource
	sizeOf        PositionSizer

	onOpportunity Callback
	onUpdate      UpdateCallback

	logger *slog.Logger
}

// NewEngine constructs an engine with the given parameters, a base leg size
// used by buildLegs, and an id generator (NewIDGenerator() for production
// use, a deterministic stub for tests).
func NewEngine(params Params, baseSize float64, idGen IDGenerator, logger *slog.Logger) *Engine {
	return &Engine{
		params:   params,
		active:   make(map[string]Opportunity),
		idGen:    idGen,
		baseSize: baseSize,
		sigmaOf:  func(legs []Leg) float64 { return 0 },
		correlationOf: func(a, b string) float64 {
			return math.NaN()
		},
		logger: logger.With(slog.String("component", "arbitrage_engine")),
	}
}

// SetPortfolioSigmaSource overrides the basket-volatility lookup used by
// the VaR calculation.
func (e *Engine) SetPortfolioSigmaSource(f PortfolioSigmaSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sigmaOf = f
}

// SetCorrelationSource overrides the pairwise correlation lookup used by
// the correlation-risk calculation.
func (e *Engine) SetCorrelationSource(f CorrelationSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.correlationOf = f
}

// SetPositionSizer overrides leg sizing. With no sizer configured, every
// opportunity's primary leg is sized at the engine's flat baseSize; with one
// configured, ProcessMispricing builds a preliminary opportunity at
// baseSize, asks the sizer to evaluate it, and rebuilds the legs at the
// returned size before the opportunity is finalized.
func (e *Engine) SetPositionSizer(f PositionSizer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizeOf = f
}

func idPrefix(t mispricing.Type) string {
	if t == mispricing.TypeCrossCurrencyTriangular {
		return "TRIANG"
	}
	return "ARB"
}

// ProcessMispricing builds a new Opportunity from a mispricing detection:
// primary and hedge legs, total cost/volume, and risk metrics, at status
// Identified. Skips (returns ErrUnknownInstrument, not a fatal error) when
// any leg's instrument has no quote in snap.
func (e *Engine) ProcessMispricing(src mispricing.Opportunity, snap market.MarketSnapshot) (Opportunity, error) {
	now := time.Now()
	legs, err := buildLegs(src, snap, e.baseSize, now)
	if err != nil {
		return Opportunity{}, err
	}
	metrics := e.computeRiskMetrics(legs)

	e.mu.Lock()
	sizeOf := e.sizeOf
	e.mu.Unlock()
	if sizeOf != nil {
		prelim := e.assemble(src, legs, metrics, now)
		if size := sizeOf(prelim); size > 0 {
			if rescaled, err := buildLegs(src, snap, size, now); err == nil {
				legs = rescaled
				metrics = e.computeRiskMetrics(legs)
			}
		}
	}

	opp := e.assemble(src, legs, metrics, now)
	opp.ID = e.idGen.NextID(idPrefix(src.Type))
	opp.Status = StatusIdentified

	e.mu.Lock()
	e.active[opp.ID] = opp
	e.mu.Unlock()

	e.logger.Debug("opportunity identified",
		slog.String("id", opp.ID),
		slog.String("type", string(opp.Type)),
		slog.Float64("expected_profit", opp.ExpectedProfit),
	)
	e.fireUpdate(opp)
	return opp, nil
}

// riskMetrics holds the cost/volume/risk figures derived from one leg set,
// shared between the preliminary (baseSize) and, when a sizer is
// configured, the final rescaled pass.
type riskMetrics struct {
	cost              float64
	volume            float64
	marketImpact      float64
	valueAtRisk       float64
	expectedShortfall float64
	correlationRisk   float64
}

func (e *Engine) computeRiskMetrics(legs []Leg) riskMetrics {
	cost := totalCost(legs)
	volume := totalVolume(legs)
	marketImpact := calculateMarketImpact(volume)

	e.mu.Lock()
	sigma := e.sigmaOf(legs)
	correlationOf := e.correlationOf
	e.mu.Unlock()

	valueAtRisk := calculateValueAtRisk(cost, sigma)
	expectedShortfall := calculateExpectedShortfall(valueAtRisk)
	correlationRisk := calculateCorrelationRisk(legs, correlationOf)

	return riskMetrics{
		cost:              cost,
		volume:            volume,
		marketImpact:      marketImpact,
		valueAtRisk:       valueAtRisk,
		expectedShortfall: expectedShortfall,
		correlationRisk:   correlationRisk,
	}
}

// assemble builds the non-identity fields of an Opportunity from a leg set
// and its risk metrics. ID and Status are left at their zero values; the
// caller fills them in once the final leg sizing is settled.
func (e *Engine) assemble(src mispricing.Opportunity, legs []Leg, m riskMetrics, now time.Time) Opportunity {
	expectedProfit := src.ExpectedProfit
	if expectedProfit == 0 {
		expectedProfit = abs(src.DeviationPercentage) * m.cost
	}

	expiry := src.ExpiryTime
	if expiry.IsZero() {
		expiry = now.Add(e.params.MaxHoldingPeriod)
	}

	return Opportunity{
		Type:               src.Type,
		Legs:               legs,
		MispricingSource:   src,
		ExpectedProfit:     expectedProfit,
		ProfitProbability:  src.ConfidenceLevel,
		TotalCost:          m.cost,
		NetExposure:        m.cost,
		ValueAtRisk:        m.valueAtRisk,
		ExpectedShortfall:  m.expectedShortfall,
		CorrelationRisk:    m.correlationRisk,
		IdentificationTime: now,
		ExpiryTime:         expiry,
		EstimatedDuration:  e.params.MaxHoldingPeriod,
		SlippageEstimate:   m.marketImpact, // market impact is the slippage estimate's proxy here
		TotalVolume:        m.volume,
		MarketImpact:       m.marketImpact,
	}
}

// IdentifyOpportunities returns a defensive copy of every opportunity still
// awaiting validation.
func (e *Engine) IdentifyOpportunities() []Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Opportunity, 0, len(e.active))
	for _, o := range e.active {
		if o.Status == StatusIdentified {
			out = append(out, o)
		}
	}
	return out
}

// ValidateOpportunity runs the four validation gates against the current
// snapshot. On success the opportunity moves to Validated; on failure it
// moves to Failed with FailureReason set and a ValidationFailure error is
// returned (not fatal — the caller simply drops the opportunity).
func (e *Engine) ValidateOpportunity(id string, snap market.MarketSnapshot) (Opportunity, error) {
	e.mu.Lock()
	opp, ok := e.active[id]
	params := e.params
	e.mu.Unlock()
	if !ok {
		return Opportunity{}, ErrOpportunityNotFound{ID: id}
	}

	now := time.Now()
	if err := validate(opp, snap, params, now); err != nil {
		_ = transition(&opp, StatusFailed)
		if vf, ok := err.(ValidationFailure); ok {
			opp.FailureReason = vf.Error()
		} else {
			opp.FailureReason = err.Error()
		}
		e.store(opp)
		e.logger.Info("opportunity failed validation",
			slog.String("id", opp.ID), slog.String("reason", opp.FailureReason))
		e.fireUpdate(opp)
		return opp, err
	}

	if err := transition(&opp, StatusValidated); err != nil {
		return opp, err
	}
	opp.ValidationTime = now
	e.store(opp)
	e.logger.Info("opportunity validated", slog.String("id", opp.ID))
	e.fireUpdate(opp)
	e.fireOpportunity(opp)
	return opp, nil
}

// AdvanceToExecuting and AdvanceToCompleted let an external execution
// system (out of scope here) drive the remaining legal transitions; the
// engine itself never trades.
func (e *Engine) AdvanceToExecuting(id string) (Opportunity, error) {
	return e.advance(id, StatusExecuting)
}

func (e *Engine) AdvanceToCompleted(id string) (Opportunity, error) {
	return e.advance(id, StatusCompleted)
}

func (e *Engine) advance(id string, next Status) (Opportunity, error) {
	e.mu.Lock()
	opp, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return Opportunity{}, ErrOpportunityNotFound{ID: id}
	}
	if err := transition(&opp, next); err != nil {
		return opp, err
	}
	e.store(opp)
	e.fireUpdate(opp)
	return opp, nil
}

// Sweep moves every non-terminal opportunity whose expiry has passed as of
// asOf to Expired, firing the update callback once per opportunity. Mirrors
// the detector-layer expiry sweep: no mid-detection cancellation, cleanup
// runs only on each snapshot update.
func (e *Engine) Sweep(asOf time.Time) {
	e.mu.Lock()
	var expired []Opportunity
	for id, o := range e.active {
		if IsTerminal(o.Status) {
			continue
		}
		if !asOf.Before(o.ExpiryTime) {
			_ = transition(&o, StatusExpired)
			e.active[id] = o
			expired = append(expired, o)
		}
	}
	e.mu.Unlock()
	for _, o := range expired {
		e.logger.Debug("opportunity expired", slog.String("id", o.ID))
		e.fireUpdate(o)
	}
}

// GetActiveOpportunities returns a defensive copy of every non-terminal
// opportunity.
func (e *Engine) GetActiveOpportunities() []Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Opportunity, 0, len(e.active))
	for _, o := range e.active {
		if !IsTerminal(o.Status) {
			out = append(out, o)
		}
	}
	return out
}

// GetOpportunityByID returns the opportunity with the given id, if tracked.
func (e *Engine) GetOpportunityByID(id string) (Opportunity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.active[id]
	return o, ok
}

// ClearOpportunities drops every tracked opportunity regardless of status.
func (e *Engine) ClearOpportunities() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = make(map[string]Opportunity)
}

// SetOpportunityCallback registers the callback fired once per validated
// opportunity.
func (e *Engine) SetOpportunityCallback(cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOpportunity = cb
}

// SetUpdateCallback registers the callback fired on every status
// transition, validated or not.
func (e *Engine) SetUpdateCallback(cb UpdateCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = cb
}

// UpdateParameters replaces the engine's validation thresholds.
func (e *Engine) UpdateParameters(params Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = params
}

func (e *Engine) store(opp Opportunity) {
	e.mu.Lock()
	e.active[opp.ID] = opp
	e.mu.Unlock()
}

func (e *Engine) fireUpdate(opp Opportunity) {
	e.mu.Lock()
	cb := e.onUpdate
	e.mu.Unlock()
	if cb != nil {
		cb(opp)
	}
}

func (e *Engine) fireOpportunity(opp Opportunity) {
	e.mu.Lock()
	cb := e.onOpportunity
	e.mu.Unlock()
	if cb != nil {
		cb(opp)
	}
}

// ErrOpportunityNotFound signals a lookup against an id the engine never
// identified or has since cleared.
type ErrOpportunityNotFound struct {
	ID string
}

func (e ErrOpportunityNotFound) Error() string {
	return "arbitrage: opportunity not found: " + e.ID
}
