package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/arbitrage"
	"github.com/alanyoungcy/polymarketbot/internal/feed"
	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingDetector is a Detector stub that remembers the last snapshot it
// was handed, so tests can assert on what the orchestrator fed it without
// depending on any real detector's math.
type recordingDetector struct {
	lastSnap market.MarketSnapshot
	calls    int
}

func (d *recordingDetector) Name() string { return "recording" }
func (d *recordingDetector) UpdateMarketData(snap market.MarketSnapshot) {
	d.lastSnap = snap
	d.calls++
}
func (d *recordingDetector) DetectOpportunities() []mispricing.Opportunity  { return nil }
func (d *recordingDetector) SetDetectionCallback(cb mispricing.Callback)    {}
func (d *recordingDetector) SetExpiryCallback(cb mispricing.ExpiryCallback) {}
func (d *recordingDetector) UpdateParameters(params mispricing.Params)      {}

func newTestOrchestrator(t *testing.T, budget time.Duration) (*Orchestrator, *recordingDetector) {
	t.Helper()
	logger := testLogger()
	agg := feed.NewAggregator(feed.Config{}, nil, logger)
	det := &recordingDetector{}
	engine := arbitrage.NewEngine(arbitrage.DefaultParams(), 1.0, arbitrage.NewIDGenerator(), logger)
	o := NewOrchestrator(agg, det, engine, nil, nil, nil, "", budget, logger)
	return o, det
}

func TestOnSnapshotFiltersStaleQuotesBeforeDetection(t *testing.T) {
	o, det := newTestOrchestrator(t, 100*time.Millisecond)

	now := time.Now()
	quotes := map[string]market.Quote{
		"fresh": {InstrumentID: market.InstrumentId{Exchange: "ex", Symbol: "FRESH"}, BidPrice: 1, AskPrice: 2, Timestamp: now},
		"stale": {InstrumentID: market.InstrumentId{Exchange: "ex", Symbol: "STALE"}, BidPrice: 1, AskPrice: 2, Timestamp: now.Add(-time.Second)},
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	o.onSnapshot(context.Background(), snap)

	if det.calls != 1 {
		t.Fatalf("expected exactly one UpdateMarketData call, got %d", det.calls)
	}
	if _, ok := det.lastSnap.Quote("fresh"); !ok {
		t.Error("expected the fresh quote to reach the detector")
	}
	if _, ok := det.lastSnap.Quote("stale"); ok {
		t.Error("expected the stale quote to be filtered out before reaching the detector")
	}
}

func TestOnSnapshotSkipsDetectionWhenFeedStale(t *testing.T) {
	o, det := newTestOrchestrator(t, 100*time.Millisecond)

	now := time.Now()
	quotes := map[string]market.Quote{
		"a": {InstrumentID: market.InstrumentId{Exchange: "ex", Symbol: "A"}, BidPrice: 1, AskPrice: 2, Timestamp: now},
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	o.onFeedStale(feed.ErrFeedStale{Budget: "500ms"})
	o.onSnapshot(context.Background(), snap)

	if det.calls != 0 {
		t.Fatalf("expected detection to be skipped for the stale tick, got %d calls", det.calls)
	}

	// The flag is consumed by the skip, so the next tick runs normally.
	o.onSnapshot(context.Background(), snap)
	if det.calls != 1 {
		t.Fatalf("expected detection to resume on the next tick, got %d calls", det.calls)
	}
}

func TestOnSequenceGapDoesNotSkipDetection(t *testing.T) {
	o, det := newTestOrchestrator(t, 100*time.Millisecond)

	now := time.Now()
	quotes := map[string]market.Quote{
		"a": {InstrumentID: market.InstrumentId{Exchange: "ex", Symbol: "A"}, BidPrice: 1, AskPrice: 2, Timestamp: now},
	}
	snap := market.NewSnapshot(quotes, nil, nil, nil, now)

	o.onSequenceGap(feed.ErrSequenceGap{Exchange: "ex", InstrumentID: "A", Expected: 5, Got: 7})
	o.onSnapshot(context.Background(), snap)

	if det.calls != 1 {
		t.Fatalf("a sequence gap alone must not skip detection, got %d calls", det.calls)
	}
}
