package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// EventKind tags the normalized event types the aggregator accepts:
// quotes, trades, level-2 depth and funding rates. Mark and index prices
// have no event kind of their own.
type EventKind string

const (
	EventQuote       EventKind = "quote"
	EventTrade       EventKind = "trade"
	EventDepth       EventKind = "depth"
	EventFundingRate EventKind = "funding_rate"
)

// Event is the normalized envelope every exchange adapter produces,
// regardless of the wire format the exchange itself speaks. exchange_id,
// canonical instrument_id, event type, and a monotonic per-stream
// sequence are the only fields the aggregator's merge policy depends on.
type Event struct {
	ExchangeID   string
	InstrumentID string
	Kind         EventKind
	Sequence     uint64
	Quote        *market.Quote
	Trade        *market.Trade
	Depth        *market.MarketDepth
	Funding      *market.FundingRate
}

// ExchangeFeed is the boundary the core consumes: something that runs
// until ctx is cancelled, normalizing exchange-native messages into
// Events and handing them to onEvent. Wire-level decoding is an external
// collaborator's responsibility; ExchangeFeed implementations are that
// collaborator's shape, not part of the core's detection/validation logic.
type ExchangeFeed interface {
	ExchangeID() string
	Run(ctx context.Context, onEvent func(Event)) error
}

// wireMessage is the normalized JSON message a generic exchange adapter
// expects over its WebSocket, used by WSFeed below. A real per-exchange
// decoder would translate native payloads into this shape before handing
// them to onEvent; that translation lives outside the core.
type wireMessage struct {
	InstrumentID string  `json:"instrument_id"`
	Kind         string  `json:"kind"`
	Sequence     uint64  `json:"sequence"`
	BidPrice     float64 `json:"bid_price,omitempty"`
	AskPrice     float64 `json:"ask_price,omitempty"`
	BidSize      float64 `json:"bid_size,omitempty"`
	AskSize      float64 `json:"ask_size,omitempty"`
	Price        float64 `json:"price,omitempty"`
	Size         float64 `json:"size,omitempty"`
	Side         string  `json:"side,omitempty"`
	TradeID      string  `json:"trade_id,omitempty"`
	Rate         float64 `json:"rate,omitempty"`
	TimestampMs  int64   `json:"timestamp_ms"`
}

// WSFeed is a generic, reconnecting WebSocket exchange adapter. It
// subscribes to a fixed URL and forwards normalized messages to onEvent.
// Concrete per-exchange decoders compose this the way the teacher's
// Polymarket client implemented subscribe/dispatch, generalized so a
// single adapter type serves any exchange speaking the wireMessage shape.
type WSFeed struct {
	exchangeID string
	wsURL      string
	logger     *slog.Logger
	closeOnce  sync.Once
	done       chan struct{}
}

// NewWSFeed returns a feed that will connect to wsURL and tag every event
// with exchangeID.
func NewWSFeed(exchangeID, wsURL string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		exchangeID: exchangeID,
		wsURL:      wsURL,
		logger:     logger.With(slog.String("component", "ws_feed"), slog.String("exchange", exchangeID)),
		done:       make(chan struct{}),
	}
}

// ExchangeID returns the exchange tag this feed produces events for.
func (f *WSFeed) ExchangeID() string { return f.exchangeID }

// Run connects and dispatches until ctx is cancelled, reconnecting with a
// fixed backoff on disconnect.
func (f *WSFeed) Run(ctx context.Context, onEvent func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := f.runConnection(connCtx, onEvent)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("exchange ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context, onEvent func(Event)) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	msgCh := make(chan wireMessage, 256)
	errCh := make(chan error, 1)
	go func() {
		for {
			var msg wireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errCh <- err
				return
			}
			msgCh <- msg
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case msg := <-msgCh:
			if ev, ok := f.translate(msg); ok {
				onEvent(ev)
			}
		}
	}
}

func (f *WSFeed) translate(msg wireMessage) (Event, bool) {
	ts := time.UnixMilli(msg.TimestampMs)
	ev := Event{
		ExchangeID:   f.exchangeID,
		InstrumentID: msg.InstrumentID,
		Sequence:     msg.Sequence,
	}
	instID := market.InstrumentId{Exchange: f.exchangeID, Symbol: msg.InstrumentID}
	switch EventKind(msg.Kind) {
	case EventQuote:
		ev.Kind = EventQuote
		ev.Quote = &market.Quote{
			InstrumentID: instID,
			BidPrice:     msg.BidPrice,
			AskPrice:     msg.AskPrice,
			BidSize:      msg.BidSize,
			AskSize:      msg.AskSize,
			Timestamp:    ts,
			Sequence:     msg.Sequence,
		}
	case EventTrade:
		ev.Kind = EventTrade
		ev.Trade = &market.Trade{
			InstrumentID: instID,
			Price:        msg.Price,
			Size:         msg.Size,
			Side:         market.TradeSide(msg.Side),
			Timestamp:    ts,
			Sequence:     msg.Sequence,
			TradeID:      msg.TradeID,
		}
	case EventFundingRate:
		ev.Kind = EventFundingRate
		ev.Funding = &market.FundingRate{
			InstrumentID: instID,
			Rate:         msg.Rate,
			Timestamp:    ts,
			Frequency:    market.DefaultFundingFrequency,
		}
	default:
		return Event{}, false
	}
	return ev, true
}

// Close stops the feed.
func (f *WSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
