package mispricing

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// Triangle names three legs A/B, B/C, A/C that close a currency loop.
type Triangle struct {
	Name string
	AB   string
	BC   string
	AC   string
}

// TriangularDetector finds profitable triangulation loops: going A->B->C
// and back to A via the direct A/C quote should net to 1.0; any
// persistent deviation is an arbitrage opportunity sized in profit per
// unit of A.
type TriangularDetector struct {
	mu        sync.Mutex
	params    Params
	triangles map[string]Triangle
	snap      market.MarketSnapshot
	expiry    *expiryTracker
	onDetect  Callback
	onExpire  ExpiryCallback
}

// NewTriangularDetector constructs a detector with the given parameters.
func NewTriangularDetector(params Params) *TriangularDetector {
	return &TriangularDetector{
		params:    params,
		triangles: make(map[string]Triangle),
		expiry:    newExpiryTracker(),
	}
}

// AddCurrencyTriangle registers a named triangle of three instrument keys.
func (d *TriangularDetector) AddCurrencyTriangle(t Triangle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triangles[t.Name] = t
}

// RemoveCurrencyTriangle unregisters a named triangle.
func (d *TriangularDetector) RemoveCurrencyTriangle(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.triangles, name)
}

// Name implements Detector.
func (d *TriangularDetector) Name() string { return "triangular" }

// UpdateMarketData implements Detector.
func (d *TriangularDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()
	d.expiry.sweep(snap.SnapshotTime(), d.onExpire)
}

// calculateTriangularProfit computes profit per unit of A for the loop
// A -(buy B with A)-> B -(buy C with B)-> C -(buy A with C, via A/C
// inverse)-> A: profit = bid(A/B) * bid(B/C) * (1/bid(A/C)) - 1.
func calculateTriangularProfit(ab, bc, ac market.Quote) float64 {
	if ac.BidPrice == 0 {
		return 0
	}
	return ab.BidPrice*bc.BidPrice*(1/ac.BidPrice) - 1
}

// DetectOpportunities implements Detector.
func (d *TriangularDetector) DetectOpportunities() []Opportunity {
	d.mu.Lock()
	triangles := make([]Triangle, 0, len(d.triangles))
	for _, t := range d.triangles {
		triangles = append(triangles, t)
	}
	snap := d.snap
	params := d.params
	d.mu.Unlock()

	var out []Opportunity
	for _, t := range triangles {
		abQ, ok1 := snap.Quote(t.AB)
		bcQ, ok2 := snap.Quote(t.BC)
		acQ, ok3 := snap.Quote(t.AC)
		if !ok1 || !ok2 || !ok3 {
			continue
		}

		profit := calculateTriangularProfit(abQ, bcQ, acQ)
		if abs(profit) <= params.MinDeviationThreshold {
			continue
		}

		now := time.Now()
		opp := Opportunity{
			TargetInstrument:     t.AC,
			ComponentInstruments: []string{t.AB, t.BC, t.AC},
			Type:                 TypeCrossCurrencyTriangular,
			Severity:             AssessSeverity(abs(profit)),
			DeviationPercentage:  profit,
			ConfidenceLevel:      1.0,
			ZScore:               0,
			Weights:              []float64{1, 1, -1},
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
func (d *TriangularDetector) SetDetectionCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetect = cb
}

// SetExpiryCallback implements Detector.
func (d *TriangularDetector) SetExpiryCallback(cb ExpiryCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = cb
}

// UpdateParameters implements Detector.
func (d *TriangularDetector) UpdateParameters(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}
