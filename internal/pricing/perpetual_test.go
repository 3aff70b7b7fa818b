package pricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func mkQuote(ex, symbol string, bid, ask float64, ts time.Time) market.Quote {
	return market.Quote{
		InstrumentID: market.InstrumentId{Exchange: ex, Symbol: symbol},
		BidPrice:     bid,
		AskPrice:     ask,
		Timestamp:    ts,
	}
}

func TestPerpetualCalculateSyntheticPrice(t *testing.T) {
	now := time.Now()
	spotKey := market.InstrumentId{Exchange: "binance", Symbol: "BTC-USD"}.String()
	perpKey := market.InstrumentId{Exchange: "binance", Symbol: "BTC-PERP"}.String()

	model := NewPerpetualModel(DefaultParams())
	model.UpdateFundingRate(market.FundingRate{
		InstrumentID: market.InstrumentId{Exchange: "binance", Symbol: "BTC-PERP"},
		Rate:         0.0002,
		Timestamp:    now,
	})

	quotes := map[string]market.Quote{
		spotKey: mkQuote("binance", "BTC-USD", 29990, 30010, now),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	result, err := model.CalculateSyntheticPrice(perpKey, []string{spotKey}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 30000.0 * 1.0002
	if diff := result.TheoreticalPrice - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("theoretical price = %v, want ~%v", result.TheoreticalPrice, want)
	}
	if result.BidPrice >= result.TheoreticalPrice || result.AskPrice <= result.TheoreticalPrice {
		t.Errorf("bid/ask should straddle theoretical: bid=%v theo=%v ask=%v", result.BidPrice, result.TheoreticalPrice, result.AskPrice)
	}
}

func TestPerpetualMissingSpotErrors(t *testing.T) {
	model := NewPerpetualModel(DefaultParams())
	snap := market.NewSnapshot(map[string]market.Quote{}, nil, nil, nil, time.Now())
	_, err := model.CalculateSyntheticPrice("x", []string{"missing"}, snap)
	if err == nil {
		t.Fatal("expected error for missing spot quote")
	}
}

func TestPerpetualDefaultFundingRate(t *testing.T) {
	model := NewPerpetualModel(DefaultParams())
	if got := model.CurrentFundingRate("unknown"); got != defaultFundingRateBps {
		t.Errorf("expected default funding rate %v, got %v", defaultFundingRateBps, got)
	}
}
