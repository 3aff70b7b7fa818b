package pricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestCrossCurrencyTriangulation(t *testing.T) {
	now := time.Now()
	legAB := market.InstrumentId{Exchange: "ex", Symbol: "A-B"}.String()
	legBC := market.InstrumentId{Exchange: "ex", Symbol: "B-C"}.String()

	model := NewCrossCurrencyModel(DefaultParams())
	quotes := map[string]market.Quote{
		legAB: mkQuote("ex", "A-B", 1.9, 2.1, now),
		legBC: mkQuote("ex", "B-C", 2.9, 3.1, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPrice("A-C", []string{legAB, legBC}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 2.0 * 3.0
	if diff := result.TheoreticalPrice - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("theoretical price = %v, want %v", result.TheoreticalPrice, want)
	}
}

func TestCrossCurrencyInvertedLeg(t *testing.T) {
	now := time.Now()
	legBA := market.InstrumentId{Exchange: "ex", Symbol: "B-A"}.String()
	legBC := market.InstrumentId{Exchange: "ex", Symbol: "B-C"}.String()

	model := NewCrossCurrencyModel(DefaultParams())
	model.SetInverted(legBA, true)

	quotes := map[string]market.Quote{
		legBA: mkQuote("ex", "B-A", 0.45, 0.55, now), // mid 0.5 => inverted 2.0
		legBC: mkQuote("ex", "B-C", 2.9, 3.1, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPrice("A-C", []string{legBA, legBC}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 2.0 * 3.0
	if diff := result.TheoreticalPrice - want; diff > 0.05 || diff < -0.05 {
		t.Errorf("theoretical price = %v, want ~%v", result.TheoreticalPrice, want)
	}
}

func TestCrossCurrencyRequiresTwoLegs(t *testing.T) {
	model := NewCrossCurrencyModel(DefaultParams())
	snap := market.NewSnapshot(map[string]market.Quote{}, nil, nil, nil, time.Now())
	_, err := model.CalculateSyntheticPrice("A-C", []string{"only-one"}, snap)
	if err == nil {
		t.Fatal("expected error for wrong number of legs")
	}
}
