package market

import "time"

// DefaultStalenessBudget is the default age past which a quote is excluded
// from detection while remaining queryable.
const DefaultStalenessBudget = 500 * time.Millisecond

// MarketSnapshot is a point-in-time, immutable composite of quotes, recent
// trades, depth, and funding rates, indexed by instrument. The aggregator
// publishes a new snapshot on every tick or on demand; it never mutates an
// already-published one, so readers never need a lock.
type MarketSnapshot struct {
	quotes       map[string]Quote
	recentTrades map[string][]Trade
	depth        map[string]MarketDepth
	fundingRates map[string]FundingRate
	snapshotTime time.Time
}

// NewSnapshot builds an immutable snapshot from already-merged per-
// instrument state. snapshotTime should be the maximum timestamp across
// all included instruments, per the feed aggregator's emission contract.
func NewSnapshot(
	quotes map[string]Quote,
	trades map[string][]Trade,
	depth map[string]MarketDepth,
	funding map[string]FundingRate,
	snapshotTime time.Time,
) MarketSnapshot {
	return MarketSnapshot{
		quotes:       quotes,
		recentTrades: trades,
		depth:        depth,
		fundingRates: funding,
		snapshotTime: snapshotTime,
	}
}

// SnapshotTime returns the publication timestamp.
func (s MarketSnapshot) SnapshotTime() time.Time { return s.snapshotTime }

// Quote returns the quote for the given instrument key and whether it
// exists in the snapshot.
func (s MarketSnapshot) Quote(key string) (Quote, bool) {
	q, ok := s.quotes[key]
	return q, ok
}

// Quotes returns every instrument key present in the snapshot.
func (s MarketSnapshot) Quotes() map[string]Quote {
	return s.quotes
}

// Depth returns the order book for the given instrument key.
func (s MarketSnapshot) Depth(key string) (MarketDepth, bool) {
	d, ok := s.depth[key]
	return d, ok
}

// RecentTrades returns recent prints for the given instrument key.
func (s MarketSnapshot) RecentTrades(key string) []Trade {
	return s.recentTrades[key]
}

// FundingRate returns the funding rate for the given instrument key.
func (s MarketSnapshot) FundingRate(key string) (FundingRate, bool) {
	f, ok := s.fundingRates[key]
	return f, ok
}

// IsStale reports whether the quote at key is older than budget relative
// to asOf. A missing quote is considered stale.
func (s MarketSnapshot) IsStale(key string, asOf time.Time, budget time.Duration) bool {
	q, ok := s.quotes[key]
	if !ok {
		return true
	}
	return asOf.Sub(q.Timestamp) > budget
}

// AllStale reports whether every known instrument in the snapshot exceeds
// the staleness budget as of asOf. An empty snapshot is not considered
// all-stale (there is nothing to be stale); callers should treat an empty
// snapshot separately if that matters to them.
func (s MarketSnapshot) AllStale(asOf time.Time, budget time.Duration) bool {
	if len(s.quotes) == 0 {
		return false
	}
	for key := range s.quotes {
		if !s.IsStale(key, asOf, budget) {
			return false
		}
	}
	return true
}

// FreshQuotes returns the subset of quotes not older than budget as of
// asOf, the form detectors should consume.
func (s MarketSnapshot) FreshQuotes(asOf time.Time, budget time.Duration) map[string]Quote {
	out := make(map[string]Quote, len(s.quotes))
	for key, q := range s.quotes {
		if asOf.Sub(q.Timestamp) <= budget {
			out[key] = q
		}
	}
	return out
}

// FilterStale returns a copy of the snapshot with stale quotes (per
// FreshQuotes) removed. Depth, trade, and funding-rate data are left
// untouched so they remain queryable independent of quote freshness;
// only the quotes a detector would read are filtered.
func (s MarketSnapshot) FilterStale(asOf time.Time, budget time.Duration) MarketSnapshot {
	out := s
	out.quotes = s.FreshQuotes(asOf, budget)
	return out
}
