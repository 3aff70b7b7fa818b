package mispricing

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// BasisPair names a registered spot/derivative relationship the basis
// calculator tracks. TheoreticalBasis computes the model-implied basis
// (e.g. cost-of-carry for a forward, funding-rate spread for a
// perpetual) from the current snapshot.
type BasisPair struct {
	Spot              string
	Derivative        string
	TheoreticalBasis  func(snap market.MarketSnapshot) (float64, error)
}

// BasisDetector tracks the realized basis for registered spot/derivative
// pairs against a rolling history and its own theoretical prediction.
type BasisDetector struct {
	mu       sync.Mutex
	params   Params
	pairs    map[string]BasisPair
	history  map[string]*boundedQueue
	snap     market.MarketSnapshot
	expiry   *expiryTracker
	onDetect Callback
	onExpire ExpiryCallback
}

// NewBasisDetector constructs a detector with the given parameters.
func NewBasisDetector(params Params) *BasisDetector {
	return &BasisDetector{
		params:  params,
		pairs:   make(map[string]BasisPair),
		history: make(map[string]*boundedQueue),
		expiry:  newExpiryTracker(),
	}
}

func pairKey(p BasisPair) string { return p.Spot + "|" + p.Derivative }

// AddInstrumentPair registers a spot/derivative pair to monitor.
func (d *BasisDetector) AddInstrumentPair(p BasisPair) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pairKey(p)
	d.pairs[key] = p
	if _, ok := d.history[key]; !ok {
		d.history[key] = newBoundedQueue(2 * d.params.MinObservationWindow)
	}
}

// CurrentBasis returns derivative_mid - spot_mid for the given pair using
// the most recently ingested snapshot.
func (d *BasisDetector) CurrentBasis(spot, derivative string) (float64, bool) {
	d.mu.Lock()
	snap := d.snap
	d.mu.Unlock()
	spotQ, ok1 := snap.Quote(spot)
	derivQ, ok2 := snap.Quote(derivative)
	if !ok1 || !ok2 {
		return 0, false
	}
	return derivQ.Mid() - spotQ.Mid(), true
}

// Name implements Detector.
func (d *BasisDetector) Name() string { return "basis" }

// UpdateMarketData implements Detector.
func (d *BasisDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.mu.Lock()
	d.snap = snap
	pairs := make([]BasisPair, 0, len(d.pairs))
	for _, p := range d.pairs {
		pairs = append(pairs, p)
	}
	d.mu.Unlock()

	for _, p := range pairs {
		basis, ok := d.CurrentBasis(p.Spot, p.Derivative)
		if !ok {
			continue
		}
		d.mu.Lock()
		h := d.history[pairKey(p)]
		d.mu.Unlock()
		h.push(basis)
	}
	d.expiry.sweep(snap.SnapshotTime(), d.onExpire)
}

// DetectOpportunities implements Detector.
func (d *BasisDetector) DetectOpportunities() []Opportunity {
	d.mu.Lock()
	snap := d.snap
	params := d.params
	pairs := make([]BasisPair, 0, len(d.pairs))
	for _, p := range d.pairs {
		pairs = append(pairs, p)
	}
	d.mu.Unlock()

	var out []Opportunity
	for _, p := range pairs {
		spotQ, ok1 := snap.Quote(p.Spot)
		if !ok1 {
			continue
		}
		basis, ok := d.CurrentBasis(p.Spot, p.Derivative)
		if !ok || spotQ.Mid() == 0 {
			continue
		}

		theoretical, err := p.TheoreticalBasis(snap)
		if err != nil {
			continue
		}

		d.mu.Lock()
		h := d.history[pairKey(p)]
		d.mu.Unlock()
		history := h.snapshot()

		deviation := (basis - theoretical) / spotQ.Mid()
		z := zScoreAgainst(basis, history)
		confidence := confidenceFromSampleSize(len(history), params.MinObservationWindow)

		if !isSignificant(params, deviation, z, confidence) {
			continue
		}

		now := time.Now()
		opp := Opportunity{
			TargetInstrument:     p.Derivative,
			ComponentInstruments: []string{p.Spot},
			Type:                 TypeSpreadAnomaly,
			Severity:             AssessSeverity(abs(deviation)),
			MarketPrice:          basis,
			TheoreticalPrice:     theoretical,
			DeviationPercentage:  deviation,
			ZScore:               z,
			ConfidenceLevel:      confidence,
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
func (d *BasisDetector) SetDetectionCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetect = cb
}

// SetExpiryCallback implements Detector.
func (d *BasisDetector) SetExpiryCallback(cb ExpiryCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = cb
}

// UpdateParameters implements Detector.
func (d *BasisDetector) UpdateParameters(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}
