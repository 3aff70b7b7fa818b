package mispricing

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/pricing"
)

// DerivativePair names a spot instrument and a derivative priced off it
// through a pricing model.
type DerivativePair struct {
	Spot       string
	Derivative string
	Model      pricing.Model
}

// SpotDerivativeDetector compares a derivative's market price to the
// theoretical price a pricing model derives from its spot reference.
type SpotDerivativeDetector struct {
	mu       sync.Mutex
	params   Params
	pairs    map[string]DerivativePair
	snap     market.MarketSnapshot
	expiry   *expiryTracker
	onDetect Callback
	onExpire ExpiryCallback
}

// NewSpotDerivativeDetector constructs a detector with the given parameters.
func NewSpotDerivativeDetector(params Params) *SpotDerivativeDetector {
	return &SpotDerivativeDetector{
		params: params,
		pairs:  make(map[string]DerivativePair),
		expiry: newExpiryTracker(),
	}
}

// AddDerivativeInstrument registers a spot/derivative pair to monitor.
func (d *SpotDerivativeDetector) AddDerivativeInstrument(p DerivativePair) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pairs[p.Derivative] = p
}

// Name implements Detector.
func (d *SpotDerivativeDetector) Name() string { return "spot_derivative" }

// UpdateMarketData implements Detector.
func (d *SpotDerivativeDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()
	d.expiry.sweep(snap.SnapshotTime(), d.onExpire)
}

// DetectOpportunities implements Detector.
func (d *SpotDerivativeDetector) DetectOpportunities() []Opportunity {
	d.mu.Lock()
	snap := d.snap
	params := d.params
	pairs := make([]DerivativePair, 0, len(d.pairs))
	for _, p := range d.pairs {
		pairs = append(pairs, p)
	}
	d.mu.Unlock()

	var out []Opportunity
	for _, p := range pairs {
		marketQuote, ok := snap.Quote(p.Derivative)
		if !ok {
			continue
		}
		synth, err := p.Model.CalculateSyntheticPrice(p.Derivative, []string{p.Spot}, snap)
		if err != nil || synth.TheoreticalPrice == 0 {
			continue
		}

		deviation := (marketQuote.Mid() - synth.TheoreticalPrice) / synth.TheoreticalPrice
		if abs(deviation) <= params.MinDeviationThreshold {
			continue
		}
		if synth.ConfidenceScore <= params.MinConfidenceLevel {
			continue
		}

		now := time.Now()
		opp := Opportunity{
			TargetInstrument:     p.Derivative,
			ComponentInstruments: []string{p.Spot},
			Type:                 TypeSpotVsSyntheticDeriv,
			Severity:             AssessSeverity(abs(deviation)),
			MarketPrice:          marketQuote.Mid(),
			TheoreticalPrice:     synth.TheoreticalPrice,
			DeviationPercentage:  deviation,
			ConfidenceLevel:      synth.ConfidenceScore,
			DetectionTime:        now,
			ExpiryTime:           now.Add(params.MaxOpportunityDuration),
		}
		d.expiry.record(opp)
		out = append(out, opp)
		if d.onDetect != nil {
			d.onDetect(opp)
		}
	}
	return out
}

// SetDetectionCallback implements Detector.
func (d *SpotDerivativeDetector) SetDetectionCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetect = cb
}

// SetExpiryCallback implements Detector.
func (d *SpotDerivativeDetector) SetExpiryCallback(cb ExpiryCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = cb
}

// UpdateParameters implements Detector.
func (d *SpotDerivativeDetector) UpdateParameters(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}
