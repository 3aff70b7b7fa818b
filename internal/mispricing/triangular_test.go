package mispricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func mkQuote(ex, symbol string, bid, ask float64) market.Quote {
	return market.Quote{
		InstrumentID: market.InstrumentId{Exchange: ex, Symbol: symbol},
		BidPrice:     bid,
		AskPrice:     ask,
		Timestamp:    time.Now(),
	}
}

func TestTriangularDetectorEmitsOnProfitableLoop(t *testing.T) {
	params := DefaultParams()
	params.MinDeviationThreshold = 0.001
	d := NewTriangularDetector(params)

	btcUSD := market.InstrumentId{Exchange: "ex", Symbol: "BTC-USD"}.String()
	ethUSD := market.InstrumentId{Exchange: "ex", Symbol: "ETH-USD"}.String()
	btcETH := market.InstrumentId{Exchange: "ex", Symbol: "BTC-ETH"}.String()

	d.AddCurrencyTriangle(Triangle{Name: "btc-eth-usd", AB: ethUSD, BC: btcETH, AC: btcUSD})

	quotes := map[string]market.Quote{
		btcUSD: mkQuote("ex", "BTC-USD", 30000, 30010),
		ethUSD: mkQuote("ex", "ETH-USD", 2000, 2002),
		btcETH: mkQuote("ex", "BTC-ETH", 15.10, 15.12),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())

	d.UpdateMarketData(snap)
	opps := d.DetectOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected exactly one opportunity, got %d", len(opps))
	}
	// profit = bid(ETH/USD) * bid(BTC/ETH) * (1/bid(BTC/USD)) - 1
	want := 2000.0*15.10*(1/30000.0) - 1
	if diff := opps[0].DeviationPercentage - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("deviation = %v, want %v", opps[0].DeviationPercentage, want)
	}
	if opps[0].Severity != SeverityLow {
		t.Errorf("expected LOW severity for small deviation, got %v", opps[0].Severity)
	}
}

func TestTriangularDetectorSkipsBelowThreshold(t *testing.T) {
	params := DefaultParams()
	params.MinDeviationThreshold = 0.5 // deliberately unreachable
	d := NewTriangularDetector(params)

	d.AddCurrencyTriangle(Triangle{Name: "t", AB: "ab", BC: "bc", AC: "ac"})
	quotes := map[string]market.Quote{
		"ab": mkQuote("ex", "AB", 1, 1.01),
		"bc": mkQuote("ex", "BC", 1, 1.01),
		"ac": mkQuote("ex", "AC", 1, 1.01),
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())
	d.UpdateMarketData(snap)
	if opps := d.DetectOpportunities(); len(opps) != 0 {
		t.Errorf("expected no opportunities below threshold, got %d", len(opps))
	}
}
