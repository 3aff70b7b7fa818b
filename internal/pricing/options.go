package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// impliedVolTolerance and impliedVolMaxIter bound the bisection search for
// implied volatility.
const (
	impliedVolTolerance = 1e-6
	impliedVolMaxIter   = 50
)

// OptionsModel prices options on a per-instrument volatility surface using
// Black-Scholes, with analytic Greeks and bisection-based implied vol.
type OptionsModel struct {
	mu             sync.Mutex
	params         Params
	surfaces       map[string]*market.VolatilitySurface
	riskFreeRates  map[string]float64
}

// NewOptionsModel constructs a model with the given parameters.
func NewOptionsModel(params Params) *OptionsModel {
	return &OptionsModel{
		params:        params,
		surfaces:      make(map[string]*market.VolatilitySurface),
		riskFreeRates: make(map[string]float64),
	}
}

// UpdateVolatilitySurface installs or replaces an instrument's surface.
func (m *OptionsModel) UpdateVolatilitySurface(instrumentKey string, surface *market.VolatilitySurface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surfaces[instrumentKey] = surface
}

// SetRiskFreeRate records the per-instrument discounting rate.
func (m *OptionsModel) SetRiskFreeRate(instrumentKey string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riskFreeRates[instrumentKey] = rate
}

func (m *OptionsModel) volatility(instrumentKey string, strike, tau float64) float64 {
	m.mu.Lock()
	surf, ok := m.surfaces[instrumentKey]
	m.mu.Unlock()
	if !ok || surf == nil {
		return 0
	}
	return surf.InterpolateVolatility(strike, tau)
}

// CalculateBlackScholesPrice prices a European option.
func (m *OptionsModel) CalculateBlackScholesPrice(spot, strike, vol, tau, riskFreeRate float64, isCall bool) (float64, error) {
	if tau <= 0 {
		return 0, ModelDomainError{Model: "options", Reason: "non-positive time to maturity"}
	}
	if vol <= 0 {
		return 0, ModelDomainError{Model: "options", Reason: "non-positive volatility"}
	}
	d1, d2 := blackScholesD1D2(spot, strike, vol, tau, riskFreeRate)
	if isCall {
		return spot*normCDF(d1) - strike*math.Exp(-riskFreeRate*tau)*normCDF(d2), nil
	}
	return strike*math.Exp(-riskFreeRate*tau)*normCDF(-d2) - spot*normCDF(-d1), nil
}

func blackScholesD1D2(spot, strike, vol, tau, r float64) (float64, float64) {
	d1 := (math.Log(spot/strike) + (r+0.5*vol*vol)*tau) / (vol * math.Sqrt(tau))
	d2 := d1 - vol*math.Sqrt(tau)
	return d1, d2
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// CalculateDelta returns d(price)/d(spot).
func (m *OptionsModel) CalculateDelta(spot, strike, vol, tau, r float64, isCall bool) float64 {
	if tau <= 0 || vol <= 0 {
		return 0
	}
	d1, _ := blackScholesD1D2(spot, strike, vol, tau, r)
	if isCall {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

// CalculateGamma returns d2(price)/d(spot)2, same for calls and puts.
func (m *OptionsModel) CalculateGamma(spot, strike, vol, tau, r float64) float64 {
	if tau <= 0 || vol <= 0 {
		return 0
	}
	d1, _ := blackScholesD1D2(spot, strike, vol, tau, r)
	return normPDF(d1) / (spot * vol * math.Sqrt(tau))
}

// CalculateTheta returns the per-year time decay.
func (m *OptionsModel) CalculateTheta(spot, strike, vol, tau, r float64, isCall bool) float64 {
	if tau <= 0 || vol <= 0 {
		return 0
	}
	d1, d2 := blackScholesD1D2(spot, strike, vol, tau, r)
	term1 := -(spot * normPDF(d1) * vol) / (2 * math.Sqrt(tau))
	if isCall {
		return term1 - r*strike*math.Exp(-r*tau)*normCDF(d2)
	}
	return term1 + r*strike*math.Exp(-r*tau)*normCDF(-d2)
}

// CalculateVega returns d(price)/d(vol), same for calls and puts.
func (m *OptionsModel) CalculateVega(spot, strike, vol, tau, r float64) float64 {
	if tau <= 0 || vol <= 0 {
		return 0
	}
	d1, _ := blackScholesD1D2(spot, strike, vol, tau, r)
	return spot * normPDF(d1) * math.Sqrt(tau)
}

// CalculateRho returns d(price)/d(r).
func (m *OptionsModel) CalculateRho(spot, strike, vol, tau, r float64, isCall bool) float64 {
	if tau <= 0 || vol <= 0 {
		return 0
	}
	_, d2 := blackScholesD1D2(spot, strike, vol, tau, r)
	if isCall {
		return strike * tau * math.Exp(-r*tau) * normCDF(d2)
	}
	return -strike * tau * math.Exp(-r*tau) * normCDF(-d2)
}

// CalculateGreeks returns all five Greeks keyed by name, matching the
// source's calculate_greeks.
func (m *OptionsModel) CalculateGreeks(spot, strike, vol, tau, r float64, isCall bool) map[string]float64 {
	return map[string]float64{
		"delta": m.CalculateDelta(spot, strike, vol, tau, r, isCall),
		"gamma": m.CalculateGamma(spot, strike, vol, tau, r),
		"theta": m.CalculateTheta(spot, strike, vol, tau, r, isCall),
		"vega":  m.CalculateVega(spot, strike, vol, tau, r),
		"rho":   m.CalculateRho(spot, strike, vol, tau, r, isCall),
	}
}

// GetImpliedVolatility solves for the volatility that reproduces
// marketPrice via bisection, tolerance 1e-6, at most 50 iterations.
func (m *OptionsModel) GetImpliedVolatility(spot, strike, tau, r, marketPrice float64, isCall bool) (float64, error) {
	if tau <= 0 {
		return 0, ModelDomainError{Model: "options", Reason: "non-positive time to maturity"}
	}
	lo, hi := 1e-6, 5.0
	for i := 0; i < impliedVolMaxIter; i++ {
		mid := (lo + hi) / 2
		price, err := m.CalculateBlackScholesPrice(spot, strike, mid, tau, r, isCall)
		if err != nil {
			return 0, err
		}
		if math.Abs(price-marketPrice) < impliedVolTolerance {
			return mid, nil
		}
		if price < marketPrice {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// CalculateSyntheticPrice implements Model. Options pricing needs an
// explicit strike and time-to-maturity that the shared interface has no
// room for; callers price options through CalculateSyntheticPriceAt
// instead, and this method exists only to satisfy Model for registries
// that enumerate models generically.
func (m *OptionsModel) CalculateSyntheticPrice(target string, components []string, snap market.MarketSnapshot) (SyntheticPrice, error) {
	return SyntheticPrice{}, ModelDomainError{Model: "options", Reason: "use CalculateSyntheticPriceAt with explicit strike/tau"}
}

// CalculateSyntheticPriceAt prices a specific option at strike/tau using
// the instrument's registered volatility surface and risk-free rate.
func (m *OptionsModel) CalculateSyntheticPriceAt(target, spotKey string, strike, tau float64, isCall bool, snap market.MarketSnapshot) (SyntheticPrice, error) {
	spotQuote, ok := snap.Quote(spotKey)
	if !ok {
		return SyntheticPrice{}, ModelDomainError{Model: "options", Reason: "spot quote missing: " + spotKey}
	}
	vol := m.volatility(target, strike, tau)
	if vol <= 0 {
		vol = m.fallbackATM(target, spotQuote.Mid(), tau)
	}
	if vol <= 0 {
		return SyntheticPrice{}, ModelDomainError{Model: "options", Reason: "no volatility available"}
	}
	m.mu.Lock()
	rate := m.riskFreeRates[target]
	m.mu.Unlock()

	price, err := m.CalculateBlackScholesPrice(spotQuote.Mid(), strike, vol, tau, rate, isCall)
	if err != nil {
		return SyntheticPrice{}, err
	}

	confidence := calculateConfidence(confidenceInputs{
		age:             time.Since(spotQuote.Timestamp),
		stalenessBudget: market.DefaultStalenessBudget,
		spreadRatio:     spotQuote.SpreadRatio(),
		maxSpreadRatio:  0.02,
		sampleSize:      m.params.LookbackPeriod,
		lookbackPeriod:  m.params.LookbackPeriod,
	})

	return SyntheticPrice{
		TheoreticalPrice:     price,
		BidPrice:             price * (1 - m.params.TransactionCost),
		AskPrice:             price * (1 + m.params.TransactionCost),
		ConfidenceScore:      confidence,
		ComponentInstruments: []string{spotKey},
		Weights:              []float64{1.0},
		CalculationTime:      time.Now(),
	}, nil
}

func (m *OptionsModel) fallbackATM(instrumentKey string, spotPrice, tau float64) float64 {
	m.mu.Lock()
	surf, ok := m.surfaces[instrumentKey]
	m.mu.Unlock()
	if !ok || surf == nil {
		return 0
	}
	return surf.GetATMVolatility(spotPrice, tau)
}

// CalculateWeights implements Model.
func (m *OptionsModel) CalculateWeights(instruments []string, snap market.MarketSnapshot) ([]float64, error) {
	weights := make([]float64, len(instruments))
	for i := range weights {
		weights[i] = 1.0
	}
	return weights, nil
}

// CalculateCorrelation implements Model.
func (m *OptionsModel) CalculateCorrelation(inst1, inst2 string, history1, history2 []market.Quote) float64 {
	return pearsonMidCorrelation(history1, history2)
}

// UpdateParameters implements Model.
func (m *OptionsModel) UpdateParameters(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
}
