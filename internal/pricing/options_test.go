package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestBlackScholesCallPutParity(t *testing.T) {
	model := NewOptionsModel(DefaultParams())
	spot, strike, vol, tau, r := 100.0, 100.0, 0.2, 1.0, 0.03

	call, err := model.CalculateBlackScholesPrice(spot, strike, vol, tau, r, true)
	if err != nil {
		t.Fatalf("call price error: %v", err)
	}
	put, err := model.CalculateBlackScholesPrice(spot, strike, vol, tau, r, false)
	if err != nil {
		t.Fatalf("put price error: %v", err)
	}

	// put-call parity: call - put = spot - strike*exp(-r*tau)
	lhs := call - put
	rhs := spot - strike*math.Exp(-r*tau)
	if diff := lhs - rhs; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("put-call parity violated: call-put=%v, spot-strike*disc=%v", lhs, rhs)
	}
}

func TestBlackScholesNonPositiveTauErrors(t *testing.T) {
	model := NewOptionsModel(DefaultParams())
	_, err := model.CalculateBlackScholesPrice(100, 100, 0.2, 0, 0.03, true)
	if err == nil {
		t.Fatal("expected error for zero time to maturity")
	}
}

func TestImpliedVolatilityRecoversInput(t *testing.T) {
	model := NewOptionsModel(DefaultParams())
	spot, strike, tau, r := 100.0, 105.0, 0.5, 0.02
	trueVol := 0.25

	price, err := model.CalculateBlackScholesPrice(spot, strike, trueVol, tau, r, true)
	if err != nil {
		t.Fatalf("price error: %v", err)
	}

	iv, err := model.GetImpliedVolatility(spot, strike, tau, r, price, true)
	if err != nil {
		t.Fatalf("implied vol error: %v", err)
	}
	if diff := iv - trueVol; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("implied vol = %v, want ~%v", iv, trueVol)
	}
}

func TestDeltaBoundsForCallAndPut(t *testing.T) {
	model := NewOptionsModel(DefaultParams())
	callDelta := model.CalculateDelta(100, 100, 0.2, 1.0, 0.03, true)
	putDelta := model.CalculateDelta(100, 100, 0.2, 1.0, 0.03, false)
	if callDelta <= 0 || callDelta >= 1 {
		t.Errorf("call delta out of (0,1): %v", callDelta)
	}
	if putDelta >= 0 || putDelta <= -1 {
		t.Errorf("put delta out of (-1,0): %v", putDelta)
	}
}

func TestSyntheticPriceAtUsesVolatilitySurface(t *testing.T) {
	now := time.Now()
	model := NewOptionsModel(DefaultParams())
	surf := market.NewVolatilitySurface()
	surf.UpdatePoint(100, 1.0, 0.2)
	model.UpdateVolatilitySurface("OPT", surf)
	model.SetRiskFreeRate("OPT", 0.03)

	quotes := map[string]market.Quote{
		"SPOT": mkQuote("ex", "SPOT", 99, 101, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPriceAt("OPT", "SPOT", 100, 1.0, true, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TheoreticalPrice <= 0 {
		t.Errorf("expected positive theoretical price, got %v", result.TheoreticalPrice)
	}
}

func TestFallbackATMPicksStrikeClosestToSpot(t *testing.T) {
	model := NewOptionsModel(DefaultParams())
	surf := market.NewVolatilitySurface()
	surf.UpdatePoint(10, 1.0, 0.05)
	surf.UpdatePoint(100, 1.0, 0.40)
	model.UpdateVolatilitySurface("OPT", surf)

	if got := model.fallbackATM("OPT", 100, 1.0); got != 0.40 {
		t.Errorf("fallbackATM near spot=100 = %v, want 0.40 (the 100-strike point)", got)
	}
	if got := model.fallbackATM("OPT", 10, 1.0); got != 0.05 {
		t.Errorf("fallbackATM near spot=10 = %v, want 0.05 (the 10-strike point)", got)
	}
}
