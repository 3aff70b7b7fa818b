package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAggregatorDropsOutOfOrderSequence(t *testing.T) {
	agg := NewAggregator(Config{}, nil, testLogger())

	now := time.Now()
	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "BTC-USD", Kind: EventQuote, Sequence: 5,
		Quote: &market.Quote{BidPrice: 100, AskPrice: 101, Timestamp: now, Sequence: 5},
	})
	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "BTC-USD", Kind: EventQuote, Sequence: 3,
		Quote: &market.Quote{BidPrice: 200, AskPrice: 201, Timestamp: now, Sequence: 3},
	})

	st := agg.state["BTC-USD"]
	if st.quote.BidPrice != 100 {
		t.Fatalf("expected out-of-order event to be dropped, got bid %v", st.quote.BidPrice)
	}
}

func TestAggregatorSequenceGapWarns(t *testing.T) {
	agg := NewAggregator(Config{}, nil, testLogger())
	var gaps []ErrSequenceGap
	agg.OnSequenceGap(func(g ErrSequenceGap) { gaps = append(gaps, g) })

	now := time.Now()
	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "BTC-USD", Kind: EventQuote, Sequence: 1,
		Quote: &market.Quote{BidPrice: 100, AskPrice: 101, Timestamp: now, Sequence: 1},
	})
	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "BTC-USD", Kind: EventQuote, Sequence: 4,
		Quote: &market.Quote{BidPrice: 102, AskPrice: 103, Timestamp: now, Sequence: 4},
	})

	if len(gaps) != 1 {
		t.Fatalf("expected exactly one sequence gap warning, got %d", len(gaps))
	}
	if gaps[0].Expected != 2 || gaps[0].Got != 4 {
		t.Fatalf("unexpected gap detail: %+v", gaps[0])
	}
}

func TestAggregatorPublishMarksStale(t *testing.T) {
	agg := NewAggregator(Config{StalenessBudget: 10 * time.Millisecond}, nil, testLogger())
	var staleFired bool
	agg.OnFeedStale(func(ErrFeedStale) { staleFired = true })

	old := time.Now().Add(-time.Second)
	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "BTC-USD", Kind: EventQuote, Sequence: 1,
		Quote: &market.Quote{BidPrice: 100, AskPrice: 101, Timestamp: old, Sequence: 1},
	})

	var published market.MarketSnapshot
	agg.OnSnapshot(func(_ context.Context, snap market.MarketSnapshot) { published = snap })
	agg.PublishNow(context.Background())

	if !staleFired {
		t.Fatal("expected FeedStale to fire when all instruments are stale")
	}
	if published.SnapshotTime().IsZero() {
		t.Fatal("expected a snapshot to still be published despite staleness")
	}
}

func TestAggregatorOmitsStaleFromFreshQuotes(t *testing.T) {
	agg := NewAggregator(Config{StalenessBudget: 10 * time.Millisecond}, nil, testLogger())
	now := time.Now()
	old := now.Add(-time.Second)

	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "STALE", Kind: EventQuote, Sequence: 1,
		Quote: &market.Quote{BidPrice: 1, AskPrice: 2, Timestamp: old, Sequence: 1},
	})
	agg.ingest(Event{
		ExchangeID: "binance", InstrumentID: "FRESH", Kind: EventQuote, Sequence: 1,
		Quote: &market.Quote{BidPrice: 1, AskPrice: 2, Timestamp: now, Sequence: 1},
	})

	var published market.MarketSnapshot
	agg.OnSnapshot(func(_ context.Context, snap market.MarketSnapshot) { published = snap })
	agg.PublishNow(context.Background())

	fresh := published.FreshQuotes(now, 10*time.Millisecond)
	if _, ok := fresh["STALE"]; ok {
		t.Fatal("expected stale instrument to be excluded from fresh quotes")
	}
	if _, ok := fresh["FRESH"]; !ok {
		t.Fatal("expected fresh instrument to remain queryable")
	}
	if _, ok := published.Quote("STALE"); !ok {
		t.Fatal("stale quote should remain queryable on the snapshot itself")
	}
}
