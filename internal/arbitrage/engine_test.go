package arbitrage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sequentialIDGenerator returns predictable ids for deterministic tests.
type sequentialIDGenerator struct{ n int }

func (g *sequentialIDGenerator) NextID(prefix string) string {
	g.n++
	return prefix + "_test_" + string(rune('0'+g.n))
}

func mkQuoteWithSize(ex, symbol string, bid, ask, bidSize, askSize float64) market.Quote {
	return market.Quote{
		InstrumentID: market.InstrumentId{Exchange: ex, Symbol: symbol},
		BidPrice:     bid,
		AskPrice:     ask,
		BidSize:      bidSize,
		AskSize:      askSize,
		Timestamp:    time.Now(),
	}
}

func TestValidationFailureWhenExpectedProfitBelowThreshold(t *testing.T) {
	// Mirrors the canonical scenario: expected_profit=10, total_cost=20000,
	// min_profit_threshold=0.001 -> 10 < 20, risk gate fails.
	params := DefaultParams()
	params.MinProfitThreshold = 0.001

	opp := Opportunity{
		ExpectedProfit: 10,
		TotalCost:      20000,
		ValueAtRisk:    0,
	}
	err := validateRiskLimits(opp, params)
	if err == nil {
		t.Fatal("expected risk validation to fail")
	}
	vf, ok := err.(ValidationFailure)
	if !ok || vf.Kind != FailureRisk {
		t.Fatalf("expected a FailureRisk ValidationFailure, got %v", err)
	}
}

func TestEngineValidateOpportunityTransitionsToFailedOnInsufficientProfit(t *testing.T) {
	params := DefaultParams()
	params.MinProfitThreshold = 0.001
	engine := NewEngine(params, 1.0, &sequentialIDGenerator{}, testLogger())

	target := market.InstrumentId{Exchange: "ex", Symbol: "TGT"}.String()
	quotes := map[string]market.Quote{
		target: mkQuoteWithSize("ex", "TGT", 99, 101, 1000, 1000),
	}
	depth := map[string]market.MarketDepth{
		target: {
			InstrumentID: market.InstrumentId{Exchange: "ex", Symbol: "TGT"},
			Bids:         []market.DepthLevel{{Price: 99, Size: 1000}},
			Asks:         []market.DepthLevel{{Price: 101, Size: 1000}},
		},
	}
	snap := market.NewSnapshot(quotes, nil, depth, nil, time.Now())

	src := mispricing.Opportunity{
		TargetInstrument:    target,
		MarketPrice:         99,
		TheoreticalPrice:    101,
		DeviationPercentage: 0.0005, // tiny, keeps computed ExpectedProfit small
		ExpectedProfit:      10,
		ExpiryTime:          time.Now().Add(time.Hour),
	}
	opp, err := engine.ProcessMispricing(src, snap)
	if err != nil {
		t.Fatalf("ProcessMispricing: %v", err)
	}
	// Force the canonical total_cost so expected_profit(10) < threshold*cost(20).
	engineForceTotalCost(engine, opp.ID, 20000)

	var callbackFired bool
	engine.SetOpportunityCallback(func(o Opportunity) { callbackFired = true })

	validated, err := engine.ValidateOpportunity(opp.ID, snap)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if validated.Status != StatusFailed {
		t.Errorf("expected status Failed, got %s", validated.Status)
	}
	if callbackFired {
		t.Error("expected no opportunity callback to fire on validation failure")
	}
}

// engineForceTotalCost is a test-only helper to pin total_cost to a known
// value without threading it through buildLegs, isolating the risk-gate
// check from leg construction arithmetic.
func engineForceTotalCost(e *Engine, id string, cost float64) {
	e.mu.Lock()
	o := e.active[id]
	o.TotalCost = cost
	e.active[id] = o
	e.mu.Unlock()
}

func TestEngineHappyPathValidatesAndFiresCallback(t *testing.T) {
	params := DefaultParams()
	params.MinProfitThreshold = 0.0001
	params.MaxRiskPerTrade = 1.0
	params.MaxCorrelationRisk = 1.0
	params.MaxMarketImpact = 1.0
	params.MaxSlippage = 1.0
	params.MaxPositionSize = 1_000_000_000
	engine := NewEngine(params, 1.0, &sequentialIDGenerator{}, testLogger())

	target := market.InstrumentId{Exchange: "ex", Symbol: "TGT"}.String()
	quotes := map[string]market.Quote{
		target: mkQuoteWithSize("ex", "TGT", 99, 101, 1000, 1000),
	}
	depth := map[string]market.MarketDepth{
		target: {
			Bids: []market.DepthLevel{{Price: 99, Size: 1000}},
			Asks: []market.DepthLevel{{Price: 101, Size: 1000}},
		},
	}
	snap := market.NewSnapshot(quotes, nil, depth, nil, time.Now())

	src := mispricing.Opportunity{
		TargetInstrument:    target,
		MarketPrice:         99,
		TheoreticalPrice:    110,
		DeviationPercentage: 0.1,
		ExpectedProfit:      50,
		ConfidenceLevel:     0.9,
		ExpiryTime:          time.Now().Add(time.Hour),
	}
	opp, err := engine.ProcessMispricing(src, snap)
	if err != nil {
		t.Fatalf("ProcessMispricing: %v", err)
	}
	if opp.Status != StatusIdentified {
		t.Fatalf("expected Identified status, got %s", opp.Status)
	}

	var fired Opportunity
	engine.SetOpportunityCallback(func(o Opportunity) { fired = o })

	validated, err := engine.ValidateOpportunity(opp.ID, snap)
	if err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if validated.Status != StatusValidated {
		t.Errorf("expected Validated, got %s", validated.Status)
	}
	if fired.ID != opp.ID {
		t.Errorf("expected the opportunity callback to fire with id %s, got %s", opp.ID, fired.ID)
	}
}

func TestEngineSweepExpiresExactlyOnce(t *testing.T) {
	params := DefaultParams()
	engine := NewEngine(params, 1.0, &sequentialIDGenerator{}, testLogger())

	target := market.InstrumentId{Exchange: "ex", Symbol: "TGT"}.String()
	quotes := map[string]market.Quote{
		target: mkQuoteWithSize("ex", "TGT", 99, 101, 1000, 1000),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())

	src := mispricing.Opportunity{
		TargetInstrument: target,
		MarketPrice:      99,
		TheoreticalPrice: 110,
		ExpiryTime:       time.Now().Add(-time.Minute), // already expired
	}
	opp, err := engine.ProcessMispricing(src, snap)
	if err != nil {
		t.Fatalf("ProcessMispricing: %v", err)
	}

	var expiredCount int
	engine.SetUpdateCallback(func(o Opportunity) {
		if o.ID == opp.ID && o.Status == StatusExpired {
			expiredCount++
		}
	})

	engine.Sweep(time.Now())
	engine.Sweep(time.Now()) // second sweep must not re-fire

	if expiredCount != 1 {
		t.Fatalf("expected exactly one expiry firing, got %d", expiredCount)
	}

	got, ok := engine.GetOpportunityByID(opp.ID)
	if !ok || got.Status != StatusExpired {
		t.Errorf("expected opportunity to be Expired, got %+v", got)
	}
}

func TestProcessMispricingUsesPositionSizerOverBaseSize(t *testing.T) {
	params := DefaultParams()
	engine := NewEngine(params, 1.0, &sequentialIDGenerator{}, testLogger())
	engine.SetPositionSizer(func(prelim Opportunity) float64 {
		return 5.0
	})

	target := market.InstrumentId{Exchange: "ex", Symbol: "TGT"}.String()
	quotes := map[string]market.Quote{
		target: mkQuoteWithSize("ex", "TGT", 99, 101, 1000, 1000),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())

	src := mispricing.Opportunity{
		TargetInstrument: target,
		MarketPrice:      99,
		TheoreticalPrice: 110,
		ExpiryTime:       time.Now().Add(time.Hour),
	}
	opp, err := engine.ProcessMispricing(src, snap)
	if err != nil {
		t.Fatalf("ProcessMispricing: %v", err)
	}
	if len(opp.Legs) != 1 || opp.Legs[0].Size != 5.0 {
		t.Fatalf("expected the sizer's size (5.0) to replace baseSize, got legs %+v", opp.Legs)
	}
}

func TestProcessMispricingIgnoresNonPositiveSizerResult(t *testing.T) {
	params := DefaultParams()
	engine := NewEngine(params, 1.0, &sequentialIDGenerator{}, testLogger())
	engine.SetPositionSizer(func(prelim Opportunity) float64 {
		return 0
	})

	target := market.InstrumentId{Exchange: "ex", Symbol: "TGT"}.String()
	quotes := map[string]market.Quote{
		target: mkQuoteWithSize("ex", "TGT", 99, 101, 1000, 1000),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())

	src := mispricing.Opportunity{
		TargetInstrument: target,
		MarketPrice:      99,
		TheoreticalPrice: 110,
		ExpiryTime:       time.Now().Add(time.Hour),
	}
	opp, err := engine.ProcessMispricing(src, snap)
	if err != nil {
		t.Fatalf("ProcessMispricing: %v", err)
	}
	if opp.Legs[0].Size != 1.0 {
		t.Fatalf("expected baseSize (1.0) to survive a non-positive sizer result, got %v", opp.Legs[0].Size)
	}
}

func TestSetCorrelationSourceFeedsCorrelationRisk(t *testing.T) {
	params := DefaultParams()
	engine := NewEngine(params, 1.0, &sequentialIDGenerator{}, testLogger())
	engine.SetCorrelationSource(func(a, b string) float64 { return 0.75 })

	target := market.InstrumentId{Exchange: "ex", Symbol: "TGT"}.String()
	comp := market.InstrumentId{Exchange: "ex", Symbol: "COMP"}.String()
	quotes := map[string]market.Quote{
		target: mkQuoteWithSize("ex", "TGT", 99, 101, 1000, 1000),
		comp:   mkQuoteWithSize("ex", "COMP", 49, 51, 1000, 1000),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())

	src := mispricing.Opportunity{
		TargetInstrument:     target,
		MarketPrice:          99,
		TheoreticalPrice:     110,
		ComponentInstruments: []string{comp},
		Weights:              []float64{1.0},
		ExpiryTime:           time.Now().Add(time.Hour),
	}
	opp, err := engine.ProcessMispricing(src, snap)
	if err != nil {
		t.Fatalf("ProcessMispricing: %v", err)
	}
	if opp.CorrelationRisk != 0.75 {
		t.Errorf("expected correlation risk from the configured source (0.75), got %v", opp.CorrelationRisk)
	}
}
