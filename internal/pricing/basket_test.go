package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestBasketEqualWeightFallback(t *testing.T) {
	now := time.Now()
	a := market.InstrumentId{Exchange: "ex", Symbol: "A"}.String()
	b := market.InstrumentId{Exchange: "ex", Symbol: "B"}.String()

	model := NewBasketModel(DefaultParams())
	quotes := map[string]market.Quote{
		a: mkQuote("ex", "A", 9, 11, now),
		b: mkQuote("ex", "B", 19, 21, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPrice("BASKET", []string{a, b}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0.5*10 + 0.5*20
	if diff := result.TheoreticalPrice - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("theoretical price = %v, want %v", result.TheoreticalPrice, want)
	}
}

func TestBasketCustomWeights(t *testing.T) {
	now := time.Now()
	a := market.InstrumentId{Exchange: "ex", Symbol: "A"}.String()
	b := market.InstrumentId{Exchange: "ex", Symbol: "B"}.String()

	model := NewBasketModel(DefaultParams())
	model.SetWeights("BASKET", []float64{0.75, 0.25})

	quotes := map[string]market.Quote{
		a: mkQuote("ex", "A", 9, 11, now),
		b: mkQuote("ex", "B", 19, 21, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPrice("BASKET", []string{a, b}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0.75*10 + 0.25*20
	if diff := result.TheoreticalPrice - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("theoretical price = %v, want %v", result.TheoreticalPrice, want)
	}
}

func TestPortfolioVolatilityPerfectCorrelationEqualsWeightedSum(t *testing.T) {
	model := NewBasketModel(DefaultParams())
	model.SetComponentVolatility("A", 0.2)
	model.SetComponentVolatility("B", 0.3)
	model.SetCorrelation("A", "B", 1.0)

	vol := model.CalculatePortfolioVolatility([]string{"A", "B"}, []float64{0.5, 0.5})
	want := 0.5*0.2 + 0.5*0.3
	if diff := vol - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("portfolio vol = %v, want %v (perfect correlation reduces to weighted sum)", vol, want)
	}
}

func TestPortfolioVolatilityDiversificationBenefit(t *testing.T) {
	model := NewBasketModel(DefaultParams())
	model.SetComponentVolatility("A", 0.2)
	model.SetComponentVolatility("B", 0.3)
	model.SetCorrelation("A", "B", 0.0)

	uncorrelated := model.CalculatePortfolioVolatility([]string{"A", "B"}, []float64{0.5, 0.5})

	model.SetCorrelation("A", "B", 1.0)
	correlated := model.CalculatePortfolioVolatility([]string{"A", "B"}, []float64{0.5, 0.5})

	if uncorrelated >= correlated {
		t.Errorf("expected uncorrelated basket vol %v to be lower than fully correlated %v", uncorrelated, correlated)
	}
}

func TestBasketCorrelationReportsNaNWhenUnset(t *testing.T) {
	model := NewBasketModel(DefaultParams())
	if got := model.Correlation("A", "A"); got != 1.0 {
		t.Errorf("self-correlation = %v, want 1.0", got)
	}
	if got := model.Correlation("A", "B"); !math.IsNaN(got) {
		t.Errorf("unset pair correlation = %v, want NaN", got)
	}
	model.SetCorrelation("A", "B", 0.4)
	if got := model.Correlation("B", "A"); got != 0.4 {
		t.Errorf("Correlation should be order-independent: got %v, want 0.4", got)
	}
}

func TestBasketEmptyErrors(t *testing.T) {
	model := NewBasketModel(DefaultParams())
	snap := market.NewSnapshot(map[string]market.Quote{}, nil, nil, nil, time.Now())
	_, err := model.CalculateSyntheticPrice("BASKET", nil, snap)
	if err == nil {
		t.Fatal("expected error for empty basket")
	}
}
