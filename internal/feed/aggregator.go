package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// SnapshotHandler receives every published snapshot.
type SnapshotHandler func(ctx context.Context, snap market.MarketSnapshot)

// Config controls the aggregator's merge and emission behavior.
type Config struct {
	StalenessBudget time.Duration // default 500ms
	TickInterval    time.Duration // default 100ms when 0; a negative value disables the timer
	TradeHistoryLen int           // recent trades retained per instrument, default 50
}

func (c Config) withDefaults() Config {
	if c.StalenessBudget <= 0 {
		c.StalenessBudget = market.DefaultStalenessBudget
	}
	if c.TickInterval == 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.TradeHistoryLen <= 0 {
		c.TradeHistoryLen = 50
	}
	return c
}

// instrumentState is the aggregator's per-instrument merge state: the
// latest retained quote/depth/funding per instrument plus the per-
// (exchange,instrument) last-seen sequence used to drop out-of-order or
// duplicate events.
type instrumentState struct {
	quote        market.Quote
	depth        market.MarketDepth
	funding      market.FundingRate
	recentTrades []market.Trade
	lastSeq      map[string]uint64 // exchange -> last sequence accepted
}

// Aggregator merges per-exchange event streams into a single coherent
// MarketSnapshot. It retains, per (exchange, instrument), only the latest
// event whose sequence number strictly exceeds the previously retained
// one; publication happens on a tick timer and is latest-wins under
// backpressure (only the newest undelivered snapshot per consumer is
// retained).
type Aggregator struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]*instrumentState // instrument key -> state

	feeds     []ExchangeFeed
	handlers  []SnapshotHandler
	onGap     func(ErrSequenceGap)
	onStale   func(ErrFeedStale)
	lastEmit  time.Time
	eventCh   chan Event
}

// NewAggregator constructs an Aggregator over the given exchange feeds.
func NewAggregator(cfg Config, feeds []ExchangeFeed, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:     cfg.withDefaults(),
		logger:  logger.With(slog.String("component", "feed_aggregator")),
		state:   make(map[string]*instrumentState),
		feeds:   feeds,
		eventCh: make(chan Event, 1024),
	}
}

// OnSnapshot registers a handler invoked for every published snapshot.
func (a *Aggregator) OnSnapshot(h SnapshotHandler) {
	a.handlers = append(a.handlers, h)
}

// OnSequenceGap registers a warning callback; it never aborts processing.
func (a *Aggregator) OnSequenceGap(h func(ErrSequenceGap)) { a.onGap = h }

// OnFeedStale registers a callback fired when every known instrument
// exceeds the staleness budget at publication time.
func (a *Aggregator) OnFeedStale(h func(ErrFeedStale)) { a.onStale = h }

// Run starts every exchange feed concurrently (errgroup fan-in) and the
// tick-driven publisher, running until ctx is cancelled or a feed returns
// a non-context error.
func (a *Aggregator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, f := range a.feeds {
		feed := f
		g.Go(func() error {
			return feed.Run(ctx, func(ev Event) { a.ingest(ev) })
		})
	}

	if a.cfg.TickInterval > 0 {
		g.Go(func() error { return a.publishLoop(ctx) })
	}

	return g.Wait()
}

// ingest applies the merge policy for a single event: strictly-increasing
// sequence per (exchange, instrument), lower/equal dropped.
func (a *Aggregator) ingest(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.state[ev.InstrumentID]
	if !ok {
		st = &instrumentState{lastSeq: make(map[string]uint64)}
		a.state[ev.InstrumentID] = st
	}

	last, seen := st.lastSeq[ev.ExchangeID]
	if seen && ev.Sequence <= last {
		return // duplicate or out-of-order, dropped silently
	}
	if seen && ev.Sequence > last+1 && a.onGap != nil {
		a.onGap(ErrSequenceGap{
			Exchange:     ev.ExchangeID,
			InstrumentID: ev.InstrumentID,
			Expected:     last + 1,
			Got:          ev.Sequence,
		})
	}
	st.lastSeq[ev.ExchangeID] = ev.Sequence

	switch ev.Kind {
	case EventQuote:
		if ev.Quote != nil {
			st.quote = *ev.Quote
		}
	case EventDepth:
		if ev.Depth != nil {
			st.depth = *ev.Depth
		}
	case EventFundingRate:
		if ev.Funding != nil {
			st.funding = *ev.Funding
		}
	case EventTrade:
		if ev.Trade != nil {
			st.recentTrades = append(st.recentTrades, *ev.Trade)
			if len(st.recentTrades) > a.cfg.TradeHistoryLen {
				st.recentTrades = st.recentTrades[len(st.recentTrades)-a.cfg.TradeHistoryLen:]
			}
		}
	}
}

func (a *Aggregator) publishLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.publish(ctx, time.Now())
		}
	}
}

// publish builds and hands off an immutable snapshot. PublishNow exposes
// it for on-demand emission outside the tick timer.
func (a *Aggregator) publish(ctx context.Context, asOf time.Time) {
	a.mu.Lock()
	quotes := make(map[string]market.Quote, len(a.state))
	depth := make(map[string]market.MarketDepth, len(a.state))
	funding := make(map[string]market.FundingRate, len(a.state))
	trades := make(map[string][]market.Trade, len(a.state))
	var maxTS time.Time
	for key, st := range a.state {
		if !st.quote.Timestamp.IsZero() {
			quotes[key] = st.quote
			if st.quote.Timestamp.After(maxTS) {
				maxTS = st.quote.Timestamp
			}
		}
		if !st.depth.Timestamp.IsZero() {
			depth[key] = st.depth
		}
		if !st.funding.Timestamp.IsZero() {
			funding[key] = st.funding
		}
		if len(st.recentTrades) > 0 {
			cp := make([]market.Trade, len(st.recentTrades))
			copy(cp, st.recentTrades)
			trades[key] = cp
		}
	}
	a.mu.Unlock()

	if maxTS.IsZero() {
		maxTS = asOf
	}
	snap := market.NewSnapshot(quotes, trades, depth, funding, maxTS)

	if snap.AllStale(asOf, a.cfg.StalenessBudget) && a.onStale != nil {
		a.onStale(ErrFeedStale{Budget: a.cfg.StalenessBudget.String()})
	}

	for _, h := range a.handlers {
		h(ctx, snap)
	}
}

// PublishNow forces an immediate snapshot emission outside the tick
// timer, for on-demand consumers.
func (a *Aggregator) PublishNow(ctx context.Context) {
	a.publish(ctx, time.Now())
}
