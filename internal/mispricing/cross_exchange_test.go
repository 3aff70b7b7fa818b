package mispricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func mkQuoteSized(ex, symbol string, bid, ask, bidSize, askSize float64) market.Quote {
	return market.Quote{
		InstrumentID: market.InstrumentId{Exchange: ex, Symbol: symbol},
		BidPrice:     bid,
		AskPrice:     ask,
		BidSize:      bidSize,
		AskSize:      askSize,
		Timestamp:    time.Now(),
	}
}

func TestCrossExchangeDetectorFindsBuyLowSellHigh(t *testing.T) {
	params := DefaultParams()
	params.MinDeviationThreshold = 0.001
	d := NewCrossExchangeDetector(params)
	d.RegisterExchange("alpha")
	d.RegisterExchange("beta")
	d.SetTransactionCost("alpha", 0.0005)
	d.SetTransactionCost("beta", 0.0005)

	alphaSnap := market.NewSnapshot(map[string]market.Quote{
		market.InstrumentId{Exchange: "alpha", Symbol: "BTC"}.String(): mkQuoteSized("alpha", "BTC", 29990, 30000, 5, 5),
	}, nil, nil, nil, time.Now())
	betaSnap := market.NewSnapshot(map[string]market.Quote{
		market.InstrumentId{Exchange: "beta", Symbol: "BTC"}.String(): mkQuoteSized("beta", "BTC", 30200, 30210, 5, 5),
	}, nil, nil, nil, time.Now())

	d.UpdateExchangeSnapshot("alpha", alphaSnap)
	d.UpdateExchangeSnapshot("beta", betaSnap)

	opps := d.DetectOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one cross-exchange opportunity, got %d", len(opps))
	}
	if opps[0].Type != TypeCrossExchangeArbitrage {
		t.Errorf("expected TypeCrossExchangeArbitrage, got %v", opps[0].Type)
	}

	// spread = 30200 - 30000 = 200; pctSpread = 200/30000 ~ 0.006667;
	// net = pctSpread - 0.001 (combined costs) ~ 0.005667
	rich := d.GetActiveCrossExchangeOpportunities()
	if len(rich) != 1 {
		t.Fatalf("expected one rich opportunity, got %d", len(rich))
	}
	r := rich[0]
	if r.ExchangeBuy != "alpha" || r.ExchangeSell != "beta" {
		t.Errorf("expected buy on alpha sell on beta, got buy=%s sell=%s", r.ExchangeBuy, r.ExchangeSell)
	}
	wantSpread := 30200.0 - 30000.0
	if diff := r.PriceSpread - wantSpread; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("PriceSpread = %v, want %v", r.PriceSpread, wantSpread)
	}
	if r.AvailableVolume != 5 {
		t.Errorf("AvailableVolume = %v, want 5", r.AvailableVolume)
	}
}

func TestCrossExchangeDetectorSkipsWhenCostsExceedSpread(t *testing.T) {
	params := DefaultParams()
	params.MinDeviationThreshold = 0.001
	d := NewCrossExchangeDetector(params)
	d.RegisterExchange("alpha")
	d.RegisterExchange("beta")
	d.SetTransactionCost("alpha", 0.01)
	d.SetTransactionCost("beta", 0.01)

	d.UpdateExchangeSnapshot("alpha", market.NewSnapshot(map[string]market.Quote{
		market.InstrumentId{Exchange: "alpha", Symbol: "BTC"}.String(): mkQuoteSized("alpha", "BTC", 29990, 30000, 5, 5),
	}, nil, nil, nil, time.Now()))
	d.UpdateExchangeSnapshot("beta", market.NewSnapshot(map[string]market.Quote{
		market.InstrumentId{Exchange: "beta", Symbol: "BTC"}.String(): mkQuoteSized("beta", "BTC", 30020, 30030, 5, 5),
	}, nil, nil, nil, time.Now()))

	if opps := d.DetectOpportunities(); len(opps) != 0 {
		t.Errorf("expected no opportunities once transaction costs exceed the spread, got %d", len(opps))
	}
}

func TestCrossExchangeDetectorRequiresTwoVenues(t *testing.T) {
	params := DefaultParams()
	d := NewCrossExchangeDetector(params)
	d.RegisterExchange("alpha")

	d.UpdateExchangeSnapshot("alpha", market.NewSnapshot(map[string]market.Quote{
		market.InstrumentId{Exchange: "alpha", Symbol: "BTC"}.String(): mkQuoteSized("alpha", "BTC", 29990, 30000, 5, 5),
	}, nil, nil, nil, time.Now()))

	if opps := d.DetectOpportunities(); len(opps) != 0 {
		t.Errorf("expected no opportunities with a single venue, got %d", len(opps))
	}
}
