package mispricing

import (
	"testing"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// stubDetector is a minimal Detector whose DetectOpportunities result and
// expiry firing are controlled directly by the test.
type stubDetector struct {
	name     string
	opps     []Opportunity
	onExpire ExpiryCallback
}

func (s *stubDetector) Name() string                              { return s.name }
func (s *stubDetector) UpdateMarketData(snap market.MarketSnapshot) {}
func (s *stubDetector) SetDetectionCallback(cb Callback)            {}
func (s *stubDetector) SetExpiryCallback(cb ExpiryCallback)         { s.onExpire = cb }
func (s *stubDetector) UpdateParameters(params Params)              {}
func (s *stubDetector) DetectOpportunities() []Opportunity          { return s.opps }

func TestConsolidateDedupesByTypeAndTargetKeepingHighestProfit(t *testing.T) {
	opps := []Opportunity{
		{Type: TypeStatisticalArbitrage, TargetInstrument: "A", ExpectedProfit: 10},
		{Type: TypeStatisticalArbitrage, TargetInstrument: "A", ExpectedProfit: 50},
		{Type: TypeStatisticalArbitrage, TargetInstrument: "B", ExpectedProfit: 5},
		{Type: TypeVolatilityArbitrage, TargetInstrument: "A", ExpectedProfit: 1},
	}
	out := consolidate(opps)
	if len(out) != 3 {
		t.Fatalf("expected 3 consolidated opportunities, got %d", len(out))
	}
	if out[0].TargetInstrument != "A" || out[0].Type != TypeStatisticalArbitrage || out[0].ExpectedProfit != 50 {
		t.Errorf("expected the highest-profit duplicate to survive first, got %+v", out[0])
	}
}

func TestCompositeDetectorFansOutAndConsolidates(t *testing.T) {
	a := &stubDetector{name: "a", opps: []Opportunity{
		{Type: TypeStatisticalArbitrage, TargetInstrument: "X", ExpectedProfit: 10},
	}}
	b := &stubDetector{name: "b", opps: []Opportunity{
		{Type: TypeStatisticalArbitrage, TargetInstrument: "X", ExpectedProfit: 25},
		{Type: TypeVolatilityArbitrage, TargetInstrument: "Y", ExpectedProfit: 3},
	}}

	c := NewCompositeDetector(DefaultParams(), a, b)

	var detected []Opportunity
	c.SetDetectionCallback(func(o Opportunity) { detected = append(detected, o) })

	out := c.DetectOpportunities()
	if len(out) != 2 {
		t.Fatalf("expected 2 consolidated opportunities, got %d", len(out))
	}
	if len(detected) != 2 {
		t.Fatalf("expected the detection callback to fire once per consolidated opportunity, got %d", len(detected))
	}

	var xProfit float64
	for _, o := range out {
		if o.TargetInstrument == "X" {
			xProfit = o.ExpectedProfit
		}
	}
	if xProfit != 25 {
		t.Errorf("expected the higher-profit duplicate for X to survive, got %v", xProfit)
	}
}

func TestCompositeDetectorForwardsChildExpiry(t *testing.T) {
	a := &stubDetector{name: "a"}
	c := NewCompositeDetector(DefaultParams(), a)

	var expired []Opportunity
	c.SetExpiryCallback(func(o Opportunity) { expired = append(expired, o) })

	if a.onExpire == nil {
		t.Fatal("expected the composite to wire the child's expiry callback")
	}
	a.onExpire(Opportunity{TargetInstrument: "Z"})

	if len(expired) != 1 || expired[0].TargetInstrument != "Z" {
		t.Fatalf("expected the composite to forward the child's expiry, got %+v", expired)
	}
}

func TestCompositeDetectorAddDetectorWiresExpiry(t *testing.T) {
	c := NewCompositeDetector(DefaultParams())
	var expired []Opportunity
	c.SetExpiryCallback(func(o Opportunity) { expired = append(expired, o) })

	b := &stubDetector{name: "b"}
	c.AddDetector(b)
	if b.onExpire == nil {
		t.Fatal("expected AddDetector to wire the new child's expiry callback")
	}
	b.onExpire(Opportunity{TargetInstrument: "W"})
	if len(expired) != 1 || expired[0].TargetInstrument != "W" {
		t.Fatalf("expected the forwarded expiry, got %+v", expired)
	}
}
