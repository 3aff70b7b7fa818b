package mispricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestSpotDerivativeDetectorEmitsOnDeviation(t *testing.T) {
	params := DefaultParams()
	d := NewSpotDerivativeDetector(params)

	spot := market.InstrumentId{Exchange: "ex", Symbol: "SPOT"}.String()
	deriv := market.InstrumentId{Exchange: "ex", Symbol: "DERIV"}.String()
	d.AddDerivativeInstrument(DerivativePair{Spot: spot, Derivative: deriv, Model: fixedModel{price: 100, err: nil}})

	quotes := map[string]market.Quote{
		spot:  mkQuote("ex", "SPOT", 99, 101),
		deriv: mkQuote("ex", "DERIV", 109, 111), // mid 110 vs theoretical 100 -> 10% deviation
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())
	d.UpdateMarketData(snap)

	opps := d.DetectOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}
	if opps[0].Type != TypeSpotVsSyntheticDeriv {
		t.Errorf("expected TypeSpotVsSyntheticDeriv, got %v", opps[0].Type)
	}
	if opps[0].Severity != SeverityCritical {
		t.Errorf("expected CRITICAL severity for a 10%% deviation, got %v", opps[0].Severity)
	}
}

func TestSpotDerivativeDetectorSkipsBelowThreshold(t *testing.T) {
	params := DefaultParams()
	d := NewSpotDerivativeDetector(params)

	spot := market.InstrumentId{Exchange: "ex", Symbol: "SPOT"}.String()
	deriv := market.InstrumentId{Exchange: "ex", Symbol: "DERIV"}.String()
	d.AddDerivativeInstrument(DerivativePair{Spot: spot, Derivative: deriv, Model: fixedModel{price: 100}})

	quotes := map[string]market.Quote{
		spot:  mkQuote("ex", "SPOT", 99, 101),
		deriv: mkQuote("ex", "DERIV", 99.9, 100.1), // mid 100 == theoretical, no deviation
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())
	d.UpdateMarketData(snap)

	if opps := d.DetectOpportunities(); len(opps) != 0 {
		t.Errorf("expected no opportunities at zero deviation, got %d", len(opps))
	}
}

func TestSpotDerivativeDetectorSkipsMissingQuote(t *testing.T) {
	params := DefaultParams()
	d := NewSpotDerivativeDetector(params)

	spot := market.InstrumentId{Exchange: "ex", Symbol: "SPOT"}.String()
	deriv := market.InstrumentId{Exchange: "ex", Symbol: "DERIV"}.String()
	d.AddDerivativeInstrument(DerivativePair{Spot: spot, Derivative: deriv, Model: fixedModel{price: 100}})

	quotes := map[string]market.Quote{
		spot: mkQuote("ex", "SPOT", 99, 101),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())
	d.UpdateMarketData(snap)

	if opps := d.DetectOpportunities(); len(opps) != 0 {
		t.Errorf("expected no opportunities when the derivative has no quote, got %d", len(opps))
	}
}
