package exposure

import "testing"

func TestAddPositionUpdatesGrossAndNetExposure(t *testing.T) {
	p := NewPortfolio("p1", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	p.AddPosition(Position{ID: "a", InstrumentID: "ex:BTC", Size: 10, CurrentPrice: 100, Side: SideLong})
	p.AddPosition(Position{ID: "b", InstrumentID: "ex:ETH", Size: 5, CurrentPrice: 200, Side: SideShort})

	snap := p.Snapshot()
	wantGross := 10*100 + 5*200
	wantNet := 10*100 - 5*200
	if snap.GrossExposure != float64(wantGross) {
		t.Errorf("expected gross exposure %v, got %v", wantGross, snap.GrossExposure)
	}
	if snap.NetExposure != float64(wantNet) {
		t.Errorf("expected net exposure %v, got %v", wantNet, snap.NetExposure)
	}
}

func TestClosePositionFoldsRealizedPnLIntoHistory(t *testing.T) {
	p := NewPortfolio("p1", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	p.AddPosition(Position{ID: "a", InstrumentID: "ex:BTC", Size: 10, CurrentPrice: 100, RealizedPnL: 50})

	closed, err := p.ClosePosition("a")
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if closed.RealizedPnL != 50 {
		t.Errorf("expected realized pnl 50, got %v", closed.RealizedPnL)
	}
	if _, ok := p.Positions["a"]; ok {
		t.Error("expected position to be removed from the open set")
	}
}

func TestClosePositionUnknownIDReturnsError(t *testing.T) {
	p := NewPortfolio("p1", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	if _, err := p.ClosePosition("missing"); err == nil {
		t.Error("expected an error closing an unknown position")
	}
}

func TestUpdateMarketDataRecomputesUnrealizedPnL(t *testing.T) {
	p := NewPortfolio("p1", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	p.AddPosition(Position{ID: "a", InstrumentID: "ex:BTC", Size: 10, EntryPrice: 100, CurrentPrice: 100, Side: SideLong})
	p.UpdateMarketData(map[string]float64{"ex:BTC": 110})

	pos := p.Positions["a"]
	if pos.UnrealizedPnL != 100 { // (110-100)*10
		t.Errorf("expected unrealized pnl 100, got %v", pos.UnrealizedPnL)
	}

	// Short position: price rising against us should produce negative pnl.
	p2 := NewPortfolio("p2", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	p2.AddPosition(Position{ID: "b", InstrumentID: "ex:ETH", Size: 5, EntryPrice: 200, CurrentPrice: 200, Side: SideShort})
	p2.UpdateMarketData(map[string]float64{"ex:ETH": 210})
	posB := p2.Positions["b"]
	if posB.UnrealizedPnL != -50 { // -(210-200)*5
		t.Errorf("expected unrealized pnl -50 on adverse short move, got %v", posB.UnrealizedPnL)
	}
}

func TestCurrentLeverageZeroWhenFlat(t *testing.T) {
	p := NewPortfolio("p1", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	p.AddPosition(Position{ID: "a", InstrumentID: "ex:BTC", Size: 10, CurrentPrice: 100, Side: SideLong})
	p.AddPosition(Position{ID: "b", InstrumentID: "ex:ETH", Size: 5, CurrentPrice: 200, Side: SideShort})
	// gross = 1000+1000=2000, net = 1000-1000=0
	if lev := p.CurrentLeverage(); lev != 0 {
		t.Errorf("expected zero leverage on a flat book, got %v", lev)
	}
}

func TestCheckRiskLimitsFlagsLeverageBreach(t *testing.T) {
	params := DefaultRiskParams()
	params.MaxLeverage = 1.0
	p := NewPortfolio("p1", params, NewRiskCalculator(), testLogger())
	p.AddPosition(Position{ID: "a", InstrumentID: "ex:BTC", Size: 100, CurrentPrice: 100, Side: SideLong})
	p.AddPosition(Position{ID: "b", InstrumentID: "ex:ETH", Size: 1, CurrentPrice: 100, Side: SideShort})
	// gross=10100, net=10000-100=9900, leverage ~ 1.02 > 1.0
	violations := p.CheckRiskLimits()
	found := false
	for _, v := range violations {
		if v == "leverage exceeds limit" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a leverage violation, got %v", violations)
	}
}

func TestEmergencyRiskReductionHalvesEveryPosition(t *testing.T) {
	p := NewPortfolio("p1", DefaultRiskParams(), NewRiskCalculator(), testLogger())
	p.AddPosition(Position{ID: "a", InstrumentID: "ex:BTC", Size: 10, CurrentPrice: 100, Side: SideLong})
	p.AddPosition(Position{ID: "b", InstrumentID: "ex:ETH", Size: 4, CurrentPrice: 200, Side: SideShort})

	reduced := p.EmergencyRiskReduction()
	if len(reduced) != 2 {
		t.Fatalf("expected 2 reduced positions, got %d", len(reduced))
	}
	if p.Positions["a"].Size != 5 {
		t.Errorf("expected position a halved to 5, got %v", p.Positions["a"].Size)
	}
	if p.Positions["b"].Size != 2 {
		t.Errorf("expected position b halved to 2, got %v", p.Positions["b"].Size)
	}
}
