package mispricing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func TestBasisDetectorPerpetualBasisScenario(t *testing.T) {
	params := DefaultParams()
	params.MinObservationWindow = 5
	d := NewBasisDetector(params)

	spotKey := market.InstrumentId{Exchange: "ex", Symbol: "SPOT"}.String()
	perpKey := market.InstrumentId{Exchange: "ex", Symbol: "PERP"}.String()

	fundingRate := 0.0005 // 8h rate
	theoreticalBasisFn := func(snap market.MarketSnapshot) (float64, error) {
		spotQ, _ := snap.Quote(spotKey)
		return spotQ.Mid() * fundingRate, nil
	}
	d.AddInstrumentPair(BasisPair{Spot: spotKey, Derivative: perpKey, TheoreticalBasis: theoreticalBasisFn})

	// First snapshot, repeated to fill the basis history: perp mid 30045 ->
	// basis 45, theoretical basis 15, excess 30, deviation = 30/30000 =
	// 0.001, below the 0.5% default threshold.
	quotes := map[string]market.Quote{
		spotKey: mkQuote("ex", "SPOT", 29999, 30001),
		perpKey: mkQuote("ex", "PERP", 30044, 30046),
	}
	for i := 0; i < 10; i++ {
		snap := market.NewSnapshot(quotes, nil, nil, nil, time.Now())
		d.UpdateMarketData(snap)
		if opps := d.DetectOpportunities(); len(opps) != 0 {
			t.Fatalf("expected no emission at 0.1%% deviation (below 0.5%% threshold), got %d", len(opps))
		}
	}

	// Second snapshot: perp mid widens to 31000 -> basis 1000, excess
	// 985, deviation = 985/30000 ~ 3.28% -> HIGH severity. The history
	// (nine samples of 45, then 1000) gives z = 9/sqrt(10) ~ 2.85 and full
	// confidence.
	quotes2 := map[string]market.Quote{
		spotKey: mkQuote("ex", "SPOT", 29999, 30001),
		perpKey: mkQuote("ex", "PERP", 30999, 31001),
	}
	snap2 := market.NewSnapshot(quotes2, nil, nil, nil, time.Now())
	d.UpdateMarketData(snap2)
	opps := d.DetectOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one emission after basis widened, got %d", len(opps))
	}
	if opps[0].Severity != SeverityHigh {
		t.Errorf("expected HIGH severity, got %v (deviation=%v)", opps[0].Severity, opps[0].DeviationPercentage)
	}
}
