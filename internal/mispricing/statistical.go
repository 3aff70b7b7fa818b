package mispricing

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/pricing"
)

// Pair names the target/component instruments a statistical detector
// watches, and the pricing model used to compute the theoretical price.
type Pair struct {
	Target     string
	Components []string
	Model      pricing.Model
}

// StatisticalDetector tracks bounded deviation history per target
// instrument and flags statistically significant departures from a
// pricing model's theoretical value.
type StatisticalDetector struct {
	mu         sync.Mutex
	params     Params
	pairs      map[string]Pair
	deviations map[string]*boundedQueue
	expiry     *expiryTracker
	onDetect   Callback
	onExpire   ExpiryCallback
}

// NewStatisticalDetector constructs a detector with the given parameters.
func NewStatisticalDetector(params Params) *StatisticalDetector {
	return &StatisticalDetector{
		params:     params,
		pairs:      make(map[string]Pair),
		deviations: make(map[string]*boundedQueue),
		expiry:     newExpiryTracker(),
	}
}

// AddPair registers a target instrument to monitor against a pricing
// model's theoretical value computed from components.
func (d *StatisticalDetector) AddPair(pair Pair) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pairs[pair.Target] = pair
	if _, ok := d.deviations[pair.Target]; !ok {
		d.deviations[pair.Target] = newBoundedQueue(2 * d.params.MinObservationWindow)
	}
}

// Name implements Detector.
func (d *StatisticalDetector) Name() string { return "statistical" }

// UpdateMarketData implements Detector: records the current deviation for
// every registered pair and sweeps expired opportunities.
func (d *StatisticalDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.mu.Lock()
	pairs := make([]Pair, 0, len(d.pairs))
	for _, p := range d.pairs {
		pairs = append(pairs, p)
	}
	d.mu.Unlock()

	for _, p := range pairs {
		marketQuote, ok := snap.Quote(p.Target)
		if !ok {
			continue
		}
		synth, err := p.Model.CalculateSyntheticPrice(p.Target, p.Components, snap)
		if err != nil {
			continue
		}
		deviation := (marketQuote.Mid() - synth.TheoreticalPrice) / synth.TheoreticalPrice

		d.mu.Lock()
		q := d.deviations[p.Target]
		d.mu.Unlock()
		q.push(deviation)
	}

	d.expiry.sweep(snap.SnapshotTime(), d.onExpire)
}

// DetectOpportunities implements Detector.
func (d *StatisticalDetector) DetectOpportunities() []Opportunity {
	d.mu.Lock()
	pairs := make([]Pair, 0, len(d.pairs))
	for _, p := range d.pairs {
		pairs = append(pairs, p)
	}
	params := d.params
	d.mu.Unlock()

	var out []Opportunity
	for _, p := range pairs {
		d.mu.Lock()
		q := d.deviations[p.Target]
		d.mu.Unlock()
		history := q.snapshot()
		if len(history) < 2 {
			continue
		}
		current := history[len(history)-1]
		z := zScoreAgainst(current, history[:len(history)-1])
		confidence := confidenceFromSampleSize(len(history), params.MinObservationWindow)

		if !isSignificant(params, current, z, confidence) {
			continue
		}

		now := time.Now()
		opp := Opportunity{
			TargetInstrument:     p.Target,
			ComponentInstruments: p.Components,
			Type:                 TypeStatisticalArbitrage,
			Severity:             AssessSeverity(abs(current)),
			DeviationPercentage:  current,
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
func (d *StatisticalDetector) SetDetectionCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetect = cb
}

// SetExpiryCallback implements Detector.
func (d *StatisticalDetector) SetExpiryCallback(cb ExpiryCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = cb
}

// UpdateParameters implements Detector.
func (d *StatisticalDetector) UpdateParameters(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}

func zScoreAgainst(current float64, history []float64) float64 {
	n := len(history)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, h := range history {
		sum += h
	}
	m := sum / float64(n)
	var sumSq float64
	for _, h := range history {
		d := h - m
		sumSq += d * d
	}
	sd := math.Sqrt(sumSq / float64(n-1))
	if sd == 0 {
		return 0
	}
	return (current - m) / sd
}

func confidenceFromSampleSize(sampleSize, minWindow int) float64 {
	if minWindow <= 0 {
		return 1
	}
	ratio := float64(sampleSize) / float64(minWindow)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
