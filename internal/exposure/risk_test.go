package exposure

import (
	"math"
	"testing"
)

func TestCalculateValueAtRiskUsesConservativeDefaultWithoutHistory(t *testing.T) {
	r := NewRiskCalculator()
	pos := Position{InstrumentID: "ex:BTC", Size: 10, CurrentPrice: 100}
	vaR := r.CalculateValueAtRisk(pos, 0.95, 1)
	want := varZScore95 * 0.02 * 1000
	if math.Abs(vaR-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, vaR)
	}
}

func TestCalculateValueAtRiskScalesWithRecordedVolatility(t *testing.T) {
	r := NewRiskCalculator()
	pos := Position{InstrumentID: "ex:BTC", Size: 1, CurrentPrice: 110}
	for _, p := range []float64{100, 110, 100, 110, 100, 110} {
		r.RecordPrice("ex:BTC", p)
	}
	vaR := r.CalculateValueAtRisk(pos, 0.95, 1)
	if vaR <= 0 {
		t.Errorf("expected positive VaR from oscillating price history, got %v", vaR)
	}
}

func TestCalculateExpectedShortfallIsMultipleOfVaR(t *testing.T) {
	r := NewRiskCalculator()
	pos := Position{InstrumentID: "ex:BTC", Size: 10, CurrentPrice: 100}
	vaR := r.CalculateValueAtRisk(pos, 0.95, 1)
	es := r.CalculateExpectedShortfall(pos, 0.95)
	want := esOverVaR95 * vaR
	if math.Abs(es-want) > 1e-9 {
		t.Errorf("expected ES %v, got %v", want, es)
	}
}

func TestCalculateMaximumDrawdownFindsWorstPeakToTrough(t *testing.T) {
	r := NewRiskCalculator()
	// cumulative: 10, 20, 5, 15 -> peak 20, trough 5 -> dd 15
	dd := r.CalculateMaximumDrawdown([]float64{10, 10, -15, 10})
	if dd != 15 {
		t.Errorf("expected max drawdown 15, got %v", dd)
	}
}

func TestCalculateMaximumDrawdownZeroOnMonotonicGains(t *testing.T) {
	r := NewRiskCalculator()
	dd := r.CalculateMaximumDrawdown([]float64{1, 1, 1, 1})
	if dd != 0 {
		t.Errorf("expected zero drawdown, got %v", dd)
	}
}

func TestCalculateCorrelationRiskUsesMaxAbsolutePairwise(t *testing.T) {
	r := NewRiskCalculator()
	r.SetCorrelation("ex:BTC", "ex:ETH", 0.2)
	r.SetCorrelation("ex:BTC", "ex:SOL", -0.8)
	positions := []Position{
		{InstrumentID: "ex:BTC"},
		{InstrumentID: "ex:ETH"},
		{InstrumentID: "ex:SOL"},
	}
	risk := r.CalculateCorrelationRisk(positions)
	if risk != 0.8 {
		t.Errorf("expected max abs correlation 0.8, got %v", risk)
	}
}

func TestCalculateCorrelationRiskZeroWithNoData(t *testing.T) {
	r := NewRiskCalculator()
	positions := []Position{{InstrumentID: "ex:BTC"}, {InstrumentID: "ex:ETH"}}
	if risk := r.CalculateCorrelationRisk(positions); risk != 0 {
		t.Errorf("expected zero correlation risk absent data, got %v", risk)
	}
}

func TestAssessRiskLevelBucketsByVaRBudgetConsumption(t *testing.T) {
	params := DefaultRiskParams() // MaxIndividualVaR = 0.01
	portfolioValue := 100000.0
	budget := params.MaxIndividualVaR * portfolioValue // 1000

	cases := []struct {
		vaR  float64
		want RiskLevel
	}{
		{vaR: budget * 0.1, want: RiskLow},
		{vaR: budget * 0.5, want: RiskMedium},
		{vaR: budget * 0.8, want: RiskHigh},
		{vaR: budget * 1.5, want: RiskExtreme},
	}
	for _, c := range cases {
		pos := Position{ValueAtRisk: c.vaR}
		got := AssessRiskLevel(pos, params, portfolioValue)
		if got != c.want {
			t.Errorf("VaR %v: expected %s, got %s", c.vaR, c.want, got)
		}
	}
}
