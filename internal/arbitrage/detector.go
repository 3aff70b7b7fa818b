package arbitrage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polymarketbot/internal/domain"
)

// busEvent is the JSON envelope published to the "opportunities" channel
// for every opportunity status transition, letting a separate process
// (e.g. the HTTP/WS server) observe the engine's state without sharing
// memory with it.
type busEvent struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	ExpectedProfit float64 `json:"expected_profit"`
	ValueAtRisk    float64 `json:"value_at_risk"`
	FailureReason  string  `json:"failure_reason,omitempty"`
}

// BusPublisher publishes every engine update onto a SignalBus channel. Bind
// it as the engine's update callback with Engine.SetUpdateCallback(pub.
// Publish) so every status transition, not just validated opportunities,
// reaches other processes.
type BusPublisher struct {
	bus     domain.SignalBus
	channel string
	logger  *slog.Logger
}

// NewBusPublisher creates a BusPublisher that publishes to the given
// channel (conventionally "opportunities").
func NewBusPublisher(bus domain.SignalBus, channel string, logger *slog.Logger) *BusPublisher {
	return &BusPublisher{
		bus:     bus,
		channel: channel,
		logger:  logger.With(slog.String("component", "arbitrage_bus_publisher")),
	}
}

// Publish encodes and publishes a single opportunity update. It is safe to
// bind directly as an Engine Callback or UpdateCallback: it never returns
// an error, logging failures instead, since a publish failure must not
// block the engine's own state transitions.
func (p *BusPublisher) Publish(opp Opportunity) {
	ev := busEvent{
		ID:             opp.ID,
		Type:           string(opp.Type),
		Status:         string(opp.Status),
		ExpectedProfit: opp.ExpectedProfit,
		ValueAtRisk:    opp.ValueAtRisk,
		FailureReason:  opp.FailureReason,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("encoding opportunity event failed", slog.String("id", opp.ID), slog.String("error", err.Error()))
		return
	}
	if err := p.bus.Publish(context.Background(), p.channel, payload); err != nil {
		p.logger.Warn("publishing opportunity event failed", slog.String("id", opp.ID), slog.String("error", err.Error()))
	}
}

// BusSubscriber consumes opportunity events published by a BusPublisher in
// another process and forwards each raw event payload to a handler. The
// server's WS hub does not use it; the hub subscribes to the signal bus
// itself.
type BusSubscriber struct {
	bus     domain.SignalBus
	channel string
	logger  *slog.Logger
}

// NewBusSubscriber creates a BusSubscriber reading from the given channel.
func NewBusSubscriber(bus domain.SignalBus, channel string, logger *slog.Logger) *BusSubscriber {
	return &BusSubscriber{
		bus:     bus,
		channel: channel,
		logger:  logger.With(slog.String("component", "arbitrage_bus_subscriber")),
	}
}

// Run subscribes to the channel and invokes handler with each message's raw
// JSON payload until ctx is cancelled or the channel closes.
func (s *BusSubscriber) Run(ctx context.Context, handler func([]byte)) error {
	ch, err := s.bus.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("arbitrage: subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("bus subscriber started", slog.String("channel", s.channel))
	defer s.logger.Info("bus subscriber stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			handler(payload)
		}
	}
}
