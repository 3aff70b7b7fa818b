package mispricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestVolatilityDetectorSkipsUnderPopulatedHistory(t *testing.T) {
	params := DefaultParams()
	d := NewVolatilityDetector(params)
	key := market.InstrumentId{Exchange: "ex", Symbol: "X"}.String()

	quotes := map[string]market.Quote{key: mkQuote("ex", "X", 99, 101)}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())
	d.UpdateMarketData(snap)

	if opps := d.DetectOpportunities(); len(opps) != 0 {
		t.Fatalf("expected no opportunities with one history sample, got %d", len(opps))
	}
}

func TestVolatilityDetectorEmitsOnPersistentDivergence(t *testing.T) {
	params := DefaultParams()
	params.MinObservationWindow = 5
	params.MinConfidenceLevel = 0.0 // isolate the volatility-gap gate from the sample-size gate
	d := NewVolatilityDetector(params)
	key := market.InstrumentId{Exchange: "ex", Symbol: "X"}.String()

	now := time.Now()
	mid := 100.0
	for i := 0; i < 60; i++ {
		// A violently oscillating mid drives realized volatility far above
		// any plausible quoted-spread proxy, which stays tiny (tight
		// 0.2-wide quotes around a mid near 100).
		if i%2 == 0 {
			mid = 100 * 1.10
		} else {
			mid = 100 * 0.90
		}
		quotes := map[string]market.Quote{key: mkQuote("ex", "X", mid-0.1, mid+0.1)}
		snap := market.NewSnapshot(quotes, nil, nil, nil, now.Add(time.Duration(i)*time.Minute))
		d.UpdateMarketData(snap)
	}

	opps := d.DetectOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one volatility opportunity, got %d", len(opps))
	}
	if opps[0].Type != TypeVolatilityArbitrage {
		t.Errorf("expected TypeVolatilityArbitrage, got %v", opps[0].Type)
	}
}

func TestCalculateRealizedVolatilityZeroOnFlatSeries(t *testing.T) {
	prices := []float64{100, 100, 100, 100}
	if v := calculateRealizedVolatility(prices); v != 0 {
		t.Errorf("expected zero realized volatility on a flat series, got %v", v)
	}
}
