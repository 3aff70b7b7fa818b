package mispricing

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

const volatilityHistorySize = 100
const tradingDaysPerYear = 252

// VolatilityDetector compares an instrument's realized volatility against
// a quoted-spread proxy for implied volatility, flagging persistent
// divergence between the two.
type VolatilityDetector struct {
	mu       sync.Mutex
	params   Params
	history  map[string]*boundedQueue
	snap     market.MarketSnapshot
	expiry   *expiryTracker
	onDetect Callback
	onExpire ExpiryCallback
}

// NewVolatilityDetector constructs a detector with the given parameters.
func NewVolatilityDetector(params Params) *VolatilityDetector {
	return &VolatilityDetector{
		params:  params,
		history: make(map[string]*boundedQueue),
		expiry:  newExpiryTracker(),
	}
}

// Name implements Detector.
func (d *VolatilityDetector) Name() string { return "volatility" }

// UpdateMarketData implements Detector: appends the current mid to each
// instrument's bounded price history.
func (d *VolatilityDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.mu.Lock()
	d.snap = snap
	for key, q := range snap.Quotes() {
		h, ok := d.history[key]
		if !ok {
			h = newBoundedQueue(volatilityHistorySize)
			d.history[key] = h
		}
		d.mu.Unlock()
		if mid := q.Mid(); mid > 0 {
			h.push(mid)
		}
		d.mu.Lock()
	}
	d.mu.Unlock()
	d.expiry.sweep(snap.SnapshotTime(), d.onExpire)
}

// calculateRealizedVolatility annualizes the sample stddev of log-returns
// using the sqrt(252) convention.
func calculateRealizedVolatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	m := sum / float64(len(returns))
	var sumSq float64
	for _, r := range returns {
		d := r - m
		sumSq += d * d
	}
	sd := math.Sqrt(sumSq / float64(len(returns)-1))
	return sd * math.Sqrt(tradingDaysPerYear)
}

// impliedVolatilityProxy approximates implied vol from the quoted spread:
// (ask - bid) / mid.
func impliedVolatilityProxy(q market.Quote) float64 {
	return q.SpreadRatio()
}

// DetectOpportunities implements Detector.
func (d *VolatilityDetector) DetectOpportunities() []Opportunity {
	d.mu.Lock()
	snap := d.snap
	params := d.params
	keys := make([]string, 0, len(d.history))
	for k := range d.history {
		keys = append(keys, k)
	}
	d.mu.Unlock()

	var out []Opportunity
	for _, key := range keys {
		q, ok := snap.Quote(key)
		if !ok {
			continue
		}
		d.mu.Lock()
		h := d.history[key]
		d.mu.Unlock()
		prices := h.snapshot()
		realized := calculateRealizedVolatility(prices)
		proxy := impliedVolatilityProxy(q)
		diff := realized - proxy
		if abs(diff) <= params.VolatilityThreshold {
			continue
		}

		confidence := confidenceFromSampleSize(len(prices), params.MinObservationWindow)
		if confidence <= params.MinConfidenceLevel {
			continue
		}

		now := time.Now()
		opp := Opportunity{
			TargetInstrument:    key,
			Type:                TypeVolatilityArbitrage,
			Severity:            AssessSeverity(abs(diff)),
			MarketPrice:         q.Mid(),
			DeviationPercentage: diff,
			ConfidenceLevel:     confidence,
			DetectionTime:       now,
			ExpiryTime:          now.Add(params.MaxOpportunityDuration),
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
func (d *VolatilityDetector) SetDetectionCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetect = cb
}

// SetExpiryCallback implements Detector.
func (d *VolatilityDetector) SetExpiryCallback(cb ExpiryCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = cb
}

// UpdateParameters implements Detector.
func (d *VolatilityDetector) UpdateParameters(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}
