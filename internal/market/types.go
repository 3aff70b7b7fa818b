// Package market defines the core market-data value types: instruments,
// quotes, trades, depth, funding rates, volatility surfaces, and the
// immutable snapshot that composes them.
package market

import "time"

// InstrumentType classifies an instrument for the pricing and detection
// layers that branch on it.
type InstrumentType string

const (
	InstrumentSpot      InstrumentType = "spot"
	InstrumentForward   InstrumentType = "forward"
	InstrumentFuture    InstrumentType = "future"
	InstrumentPerpetual InstrumentType = "perpetual"
	InstrumentOption    InstrumentType = "option"
	InstrumentSwap      InstrumentType = "swap"
)

// InstrumentId is an opaque key, globally unique when combined with an
// exchange tag. Two instruments with the same Symbol on different
// exchanges are distinct keys for sequencing purposes but the same
// economic instrument for cross-exchange detection.
type InstrumentId struct {
	Exchange string
	Symbol   string
}

// String returns the canonical "exchange:symbol" form used as a map key
// throughout the aggregator and detectors.
func (id InstrumentId) String() string {
	return id.Exchange + ":" + id.Symbol
}

// Instrument describes the static properties of a tradable instrument.
type Instrument struct {
	ID         InstrumentId
	Type       InstrumentType
	TickSize   float64
	MinSize    float64
	Expiry     *time.Time // derivatives only
	Strike     float64    // options only
	Underlying string     // symbol of the underlying, options/futures only
}

// Quote is a single top-of-book two-sided price.
//
// Invariant: AskPrice >= BidPrice whenever both are non-zero. Sequence is
// monotonically non-decreasing per (exchange, instrument); the aggregator
// enforces this on ingest, not the type itself.
type Quote struct {
	InstrumentID InstrumentId
	BidPrice     float64
	AskPrice     float64
	BidSize      float64
	AskSize      float64
	Timestamp    time.Time
	Sequence     uint64
}

// Mid returns the midpoint price, or zero if either side is zero.
func (q Quote) Mid() float64 {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return 0
	}
	return (q.BidPrice + q.AskPrice) / 2
}

// SpreadRatio returns (ask-bid)/mid, or zero if mid is zero.
func (q Quote) SpreadRatio() float64 {
	mid := q.Mid()
	if mid == 0 {
		return 0
	}
	return (q.AskPrice - q.BidPrice) / mid
}

// Valid reports whether the quote satisfies the ask >= bid invariant.
func (q Quote) Valid() bool {
	if q.BidPrice == 0 || q.AskPrice == 0 {
		return true
	}
	return q.AskPrice >= q.BidPrice
}

// TradeSide is the aggressor side of a trade print.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is a single executed print. TradeID is unique per exchange.
type Trade struct {
	InstrumentID InstrumentId
	Price        float64
	Size         float64
	Side         TradeSide
	Timestamp    time.Time
	Sequence     uint64
	TradeID      string
}

// DepthLevel is one price/size level in an order book.
type DepthLevel struct {
	Price float64
	Size  float64
}

// MarketDepth is an order book snapshot for one instrument. Bids are
// sorted descending by price, asks ascending; every level has Size > 0.
type MarketDepth struct {
	InstrumentID InstrumentId
	Bids         []DepthLevel
	Asks         []DepthLevel
	Timestamp    time.Time
}

// BestBid returns the top bid level, or the zero level if empty.
func (d MarketDepth) BestBid() DepthLevel {
	if len(d.Bids) == 0 {
		return DepthLevel{}
	}
	return d.Bids[0]
}

// BestAsk returns the top ask level, or the zero level if empty.
func (d MarketDepth) BestAsk() DepthLevel {
	if len(d.Asks) == 0 {
		return DepthLevel{}
	}
	return d.Asks[0]
}

// DepthAtPrice sums size available at price levels at least as good as
// limitPrice (>=limitPrice for bids consumed by a sell, <=limitPrice for
// asks consumed by a buy); side selects which book to walk.
func (d MarketDepth) DepthAtPrice(side TradeSide, limitPrice float64) float64 {
	var total float64
	if side == TradeSell {
		for _, lvl := range d.Bids {
			if lvl.Price < limitPrice {
				break
			}
			total += lvl.Size
		}
		return total
	}
	for _, lvl := range d.Asks {
		if lvl.Price > limitPrice {
			break
		}
		total += lvl.Size
	}
	return total
}

// FundingRate is the periodic payment rate that anchors a perpetual swap
// to its spot reference.
type FundingRate struct {
	InstrumentID InstrumentId
	Rate         float64
	Timestamp    time.Time
	Frequency    time.Duration // default 8h
}

// DefaultFundingFrequency is the conventional perpetual funding interval.
const DefaultFundingFrequency = 8 * time.Hour

// volPoint is a (strike, time-to-expiry) key into a VolatilitySurface.
type volPoint struct {
	Strike float64
	Tau    float64
}

// VolatilitySurface maps (strike, time-to-expiry) to implied volatility
// and supports bilinear interpolation plus an ATM query by spot price.
type VolatilitySurface struct {
	points map[volPoint]float64
}

// NewVolatilitySurface returns an empty surface ready for UpdatePoint calls.
func NewVolatilitySurface() *VolatilitySurface {
	return &VolatilitySurface{points: make(map[volPoint]float64)}
}

// UpdatePoint stores or overwrites the volatility quoted at (strike, tau).
func (s *VolatilitySurface) UpdatePoint(strike, tau, vol float64) {
	if s.points == nil {
		s.points = make(map[volPoint]float64)
	}
	s.points[volPoint{Strike: strike, Tau: tau}] = vol
}

// InterpolateVolatility performs bilinear interpolation between the four
// surrounding grid points. If the exact point is stored, it is returned
// unchanged (interpolation is idempotent at stored points). If fewer than
// four corners exist, it falls back to the ATM volatility for tau.
func (s *VolatilitySurface) InterpolateVolatility(strike, tau float64) float64 {
	if v, ok := s.points[volPoint{Strike: strike, Tau: tau}]; ok {
		return v
	}

	var strikesBelow, strikesAbove, tausBelow, tausAbove []float64
	for p := range s.points {
		if p.Strike <= strike {
			strikesBelow = append(strikesBelow, p.Strike)
		}
		if p.Strike >= strike {
			strikesAbove = append(strikesAbove, p.Strike)
		}
		if p.Tau <= tau {
			tausBelow = append(tausBelow, p.Tau)
		}
		if p.Tau >= tau {
			tausAbove = append(tausAbove, p.Tau)
		}
	}
	k1, ok1 := maxOf(strikesBelow)
	k2, ok2 := minOf(strikesAbove)
	t1, ok3 := maxOf(tausBelow)
	t2, ok4 := minOf(tausAbove)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return s.atmFallback(strike, tau)
	}

	v11, ok11 := s.points[volPoint{Strike: k1, Tau: t1}]
	v12, ok12 := s.points[volPoint{Strike: k1, Tau: t2}]
	v21, ok21 := s.points[volPoint{Strike: k2, Tau: t1}]
	v22, ok22 := s.points[volPoint{Strike: k2, Tau: t2}]
	if !ok11 || !ok12 || !ok21 || !ok22 {
		return s.atmFallback(strike, tau)
	}
	if k1 == k2 && t1 == t2 {
		return v11
	}
	if k1 == k2 {
		return lerp(v11, v12, t1, t2, tau)
	}
	if t1 == t2 {
		return lerp(v11, v21, k1, k2, strike)
	}
	vLowK := lerp(v11, v12, t1, t2, tau)
	vHighK := lerp(v21, v22, t1, t2, tau)
	return lerp(vLowK, vHighK, k1, k2, strike)
}

// GetATMVolatility returns the volatility nearest to the given tau among
// points whose strike is closest to spotPrice.
func (s *VolatilitySurface) GetATMVolatility(spotPrice, tau float64) float64 {
	return s.atmFallback(spotPrice, tau)
}

// atmFallback picks the stored point(s) whose strike sits closest to
// spotPrice, then among those ties breaks by closest tau. This is the
// fallback path InterpolateVolatility uses when a full four-corner grid
// isn't available, so it must still honor the moneyness of the query
// rather than matching on tau alone.
func (s *VolatilitySurface) atmFallback(spotPrice, tau float64) float64 {
	var candidates []volPoint
	bestStrikeDist := -1.0
	for p := range s.points {
		d := abs(p.Strike - spotPrice)
		switch {
		case bestStrikeDist < 0 || d < bestStrikeDist:
			bestStrikeDist = d
			candidates = candidates[:0]
			candidates = append(candidates, p)
		case d == bestStrikeDist:
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	var best float64
	bestTauDist := -1.0
	for _, p := range candidates {
		d := abs(p.Tau - tau)
		if bestTauDist < 0 || d < bestTauDist {
			best, bestTauDist = s.points[p], d
		}
	}
	return best
}

func lerp(v1, v2, x1, x2, x float64) float64 {
	if x2 == x1 {
		return v1
	}
	t := (x - x1) / (x2 - x1)
	return v1 + t*(v2-v1)
}

func maxOf(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m, true
}

func minOf(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
