package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestForwardsCalculateSyntheticPrice(t *testing.T) {
	now := time.Now()
	spotKey := market.InstrumentId{Exchange: "cme", Symbol: "SPOT"}.String()
	futKey := market.InstrumentId{Exchange: "cme", Symbol: "FUT-3M"}.String()

	model := NewForwardsModel(DefaultParams())
	model.SetInterestRate(futKey, 0.05)
	model.SetDividendYield(futKey, 0.01)
	model.SetMaturity(futKey, now.Add(90*24*time.Hour))

	quotes := map[string]market.Quote{
		spotKey: mkQuote("cme", "SPOT", 99, 101, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPrice(futKey, []string{spotKey}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tau := 90.0 / 365.0
	want := 100.0 * math.Exp(0.04*tau)
	if diff := result.TheoreticalPrice - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("theoretical price = %v, want ~%v", result.TheoreticalPrice, want)
	}
}

func TestForwardsNoMaturitySetErrors(t *testing.T) {
	model := NewForwardsModel(DefaultParams())
	now := time.Now()
	spotKey := "x"
	quotes := map[string]market.Quote{spotKey: mkQuote("ex", "A", 1, 2, now)}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	_, err := model.CalculateSyntheticPrice("unconfigured", []string{spotKey}, snap)
	if err == nil {
		t.Fatal("expected ModelDomainError for missing maturity")
	}
	if _, ok := err.(ModelDomainError); !ok {
		t.Errorf("expected ModelDomainError, got %T", err)
	}
}

func TestForwardsExpiredMaturityErrors(t *testing.T) {
	model := NewForwardsModel(DefaultParams())
	now := time.Now()
	futKey := "fut"
	model.SetMaturity(futKey, now.Add(-time.Hour))

	quotes := map[string]market.Quote{"spot": mkQuote("ex", "A", 1, 2, now)}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	_, err := model.CalculateSyntheticPrice(futKey, []string{"spot"}, snap)
	if err == nil {
		t.Fatal("expected error for non-positive time to maturity")
	}
}
