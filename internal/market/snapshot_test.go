package market

import (
	"testing"
	"time"
)

func TestFilterStaleDropsOnlyStaleQuotes(t *testing.T) {
	now := time.Now()
	quotes := map[string]Quote{
		"fresh": {InstrumentID: InstrumentId{Exchange: "ex", Symbol: "FRESH"}, BidPrice: 1, AskPrice: 2, Timestamp: now},
		"stale": {InstrumentID: InstrumentId{Exchange: "ex", Symbol: "STALE"}, BidPrice: 1, AskPrice: 2, Timestamp: now.Add(-time.Second)},
	}
	depth := map[string]MarketDepth{"stale": {}}
	snap := NewSnapshot(quotes, nil, depth, nil, now)

	filtered := snap.FilterStale(now, 100*time.Millisecond)

	if _, ok := filtered.Quote("fresh"); !ok {
		t.Error("expected fresh quote to survive filtering")
	}
	if _, ok := filtered.Quote("stale"); ok {
		t.Error("expected stale quote to be filtered out")
	}
	if _, ok := filtered.Depth("stale"); !ok {
		t.Error("depth data should remain queryable regardless of quote freshness")
	}
	if _, ok := snap.Quote("stale"); !ok {
		t.Error("FilterStale must not mutate the original snapshot")
	}
}
