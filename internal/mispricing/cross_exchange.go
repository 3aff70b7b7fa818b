package mispricing

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// CrossExchangeOpportunity reports a profitable buy-low/sell-high pair
// across two venues for the same instrument, beyond the shared
// Opportunity fields.
type CrossExchangeOpportunity struct {
	Opportunity
	ExchangeBuy          string
	ExchangeSell         string
	PriceSpread          float64
	PercentageSpread     float64
	RequiredCapital      float64
	CapitalEfficiency    float64
	AvailableVolume      float64
	ExecutionProbability float64
}

// CrossExchangeDetector keeps the latest per-exchange snapshot for each
// instrument and compares best prices across venues.
type CrossExchangeDetector struct {
	mu               sync.Mutex
	params           Params
	exchanges        map[string]bool
	transactionCosts map[string]float64
	snapshots        map[string]market.MarketSnapshot // keyed by exchange
	active           []CrossExchangeOpportunity
	expiry           *expiryTracker
	onDetect         Callback
	onExpire         ExpiryCallback
}

// NewCrossExchangeDetector constructs a detector with the given parameters.
func NewCrossExchangeDetector(params Params) *CrossExchangeDetector {
	return &CrossExchangeDetector{
		params:           params,
		exchanges:        make(map[string]bool),
		transactionCosts: make(map[string]float64),
		snapshots:        make(map[string]market.MarketSnapshot),
		expiry:           newExpiryTracker(),
	}
}

// RegisterExchange adds a venue to compare.
func (d *CrossExchangeDetector) RegisterExchange(exchangeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exchanges[exchangeID] = true
}

// SetTransactionCost records the round-trip cost fraction charged by an
// exchange (e.g. 0.0005 for 5bp).
func (d *CrossExchangeDetector) SetTransactionCost(exchangeID string, costFraction float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transactionCosts[exchangeID] = costFraction
}

// UpdateExchangeSnapshot records the latest snapshot for one venue. Each
// exchange's own feed aggregator publishes independently; this detector
// merges across exchanges rather than across instruments.
func (d *CrossExchangeDetector) UpdateExchangeSnapshot(exchangeID string, snap market.MarketSnapshot) {
	d.mu.Lock()
	d.snapshots[exchangeID] = snap
	d.mu.Unlock()
	d.expiry.sweep(snap.SnapshotTime(), d.onExpire)
}

// Name implements Detector.
func (d *CrossExchangeDetector) Name() string { return "cross_exchange" }

// UpdateMarketData implements Detector by attributing the snapshot to the
// first registered exchange with no data yet; callers driving multiple
// venues should prefer UpdateExchangeSnapshot directly.
func (d *CrossExchangeDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.mu.Lock()
	var target string
	for ex := range d.exchanges {
		if _, ok := d.snapshots[ex]; !ok {
			target = ex
			break
		}
	}
	if target == "" {
		for ex := range d.exchanges {
			target = ex
			break
		}
	}
	d.mu.Unlock()
	if target != "" {
		d.UpdateExchangeSnapshot(target, snap)
	}
}

// instrumentsBySymbol groups instrument keys from every tracked exchange
// snapshot by their bare symbol, so the same economic instrument on
// different exchanges compares as one group.
func (d *CrossExchangeDetector) instrumentsBySymbol() map[string]map[string]market.Quote {
	groups := make(map[string]map[string]market.Quote)
	for exchange, snap := range d.snapshots {
		for _, q := range snap.Quotes() {
			symbol := q.InstrumentID.Symbol
			if groups[symbol] == nil {
				groups[symbol] = make(map[string]market.Quote)
			}
			groups[symbol][exchange] = q
		}
	}
	return groups
}

// DetectOpportunities implements Detector.
func (d *CrossExchangeDetector) DetectOpportunities() []Opportunity {
	d.mu.Lock()
	params := d.params
	costs := make(map[string]float64, len(d.transactionCosts))
	for k, v := range d.transactionCosts {
		costs[k] = v
	}
	groups := d.instrumentsBySymbol()
	d.mu.Unlock()

	var out []Opportunity
	var rich []CrossExchangeOpportunity
	for symbol, byExchange := range groups {
		if len(byExchange) < 2 {
			continue
		}
		var buyEx, sellEx string
		var buyQuote, sellQuote market.Quote
		first := true
		for ex, q := range byExchange {
			if first {
				buyEx, sellEx, buyQuote, sellQuote = ex, ex, q, q
				first = false
				continue
			}
			if q.AskPrice < buyQuote.AskPrice {
				buyEx, buyQuote = ex, q
			}
			if q.BidPrice > sellQuote.BidPrice {
				sellEx, sellQuote = ex, q
			}
		}
		if buyEx == sellEx {
			continue
		}

		spread := sellQuote.BidPrice - buyQuote.AskPrice
		if spread <= 0 {
			continue
		}
		pctSpread := spread / buyQuote.AskPrice
		costFraction := costs[buyEx] + costs[sellEx]
		netProfitFraction := pctSpread - costFraction
		if netProfitFraction <= params.MinDeviationThreshold {
			continue
		}

		requiredCapital := buyQuote.AskPrice
		availableVolume := minFloat(buyQuote.AskSize, sellQuote.BidSize)
		expectedProfit := netProfitFraction * requiredCapital
		capitalEfficiency := 0.0
		if requiredCapital > 0 {
			capitalEfficiency = expectedProfit / requiredCapital
		}
		executionProbability := estimateExecutionProbability(availableVolume, params.LiquidityThreshold)

		now := time.Now()
		base := Opportunity{
			TargetInstrument:    symbol,
			Type:                TypeCrossExchangeArbitrage,
			Severity:            AssessSeverity(abs(netProfitFraction)),
			DeviationPercentage: netProfitFraction,
			ConfidenceLevel:     executionProbability,
			ExpectedProfit:      netProfitFraction * requiredCapital,
			DetectionTime:       now,
			ExpiryTime:          now.Add(params.MaxOpportunityDuration),
		}
		d.expiry.record(base)
		out = append(out, base)
		rich = append(rich, CrossExchangeOpportunity{
			Opportunity:          base,
			ExchangeBuy:          buyEx,
			ExchangeSell:         sellEx,
			PriceSpread:          spread,
			PercentageSpread:     pctSpread,
			RequiredCapital:      requiredCapital,
			CapitalEfficiency:    capitalEfficiency,
			AvailableVolume:      availableVolume,
			ExecutionProbability: executionProbability,
		})
		if d.onDetect != nil {
			d.onDetect(base)
		}
	}

	d.mu.Lock()
	d.active = rich
	d.mu.Unlock()
	return out
}

// GetActiveCrossExchangeOpportunities returns the richer per-venue detail
// behind the most recent DetectOpportunities call.
func (d *CrossExchangeDetector) GetActiveCrossExchangeOpportunities() []CrossExchangeOpportunity {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CrossExchangeOpportunity, len(d.active))
	copy(out, d.active)
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// estimateExecutionProbability scales linearly with available volume
// relative to the configured liquidity threshold, capped at 1.0.
func estimateExecutionProbability(availableVolume, liquidityThreshold float64) float64 {
	if liquidityThreshold <= 0 {
		return 1.0
	}
	p := availableVolume / liquidityThreshold
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// SetDetectionCallback implements Detector.
func (d *CrossExchangeDetector) SetDetectionCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetect = cb
}

// SetExpiryCallback implements Detector.
func (d *CrossExchangeDetector) SetExpiryCallback(cb ExpiryCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = cb
}

// UpdateParameters implements Detector.
func (d *CrossExchangeDetector) UpdateParameters(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}
