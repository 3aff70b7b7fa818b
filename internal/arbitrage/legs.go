package arbitrage

import (
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
)

// buildLegs constructs the primary leg and one hedge leg per component from
// a mispricing detection: the primary leg trades the bid when the market
// price sits below theoretical (buy cheap) and the ask otherwise (sell
// rich), weight +1; each hedge leg takes the opposite side from its
// component weight's sign, sized at |weight|*baseSize, weight -weight.
// Entry prices come from the side-appropriate quote in snap.
func buildLegs(src mispricing.Opportunity, snap market.MarketSnapshot, baseSize float64, now time.Time) ([]Leg, error) {
	targetQuote, ok := snap.Quote(src.TargetInstrument)
	if !ok {
		return nil, ErrUnknownInstrument{Instrument: src.TargetInstrument}
	}

	// Side names the direction of our own order: Bid means we buy (filled
	// at the ask), Ask means we sell (filled at the bid).
	primarySide := SideAsk
	if src.MarketPrice < src.TheoreticalPrice {
		primarySide = SideBid
	}
	primaryEntry := targetQuote.BidPrice
	if primarySide == SideBid {
		primaryEntry = targetQuote.AskPrice
	}

	legs := make([]Leg, 0, 1+len(src.ComponentInstruments))
	legs = append(legs, Leg{
		InstrumentID: src.TargetInstrument,
		Side:         primarySide,
		Size:         baseSize,
		EntryPrice:   primaryEntry,
		Weight:       1.0,
		EntryTime:    now,
	})

	for i, component := range src.ComponentInstruments {
		weight := 0.0
		if i < len(src.Weights) {
			weight = src.Weights[i]
		}
		compQuote, ok := snap.Quote(component)
		if !ok {
			return nil, ErrUnknownInstrument{Instrument: component}
		}

		hedgeSide := SideBid
		if weight > 0 {
			hedgeSide = SideAsk
		}
		entry := compQuote.AskPrice
		if hedgeSide == SideAsk {
			entry = compQuote.BidPrice
		}

		legs = append(legs, Leg{
			InstrumentID: component,
			Side:         hedgeSide,
			Size:         abs(weight) * baseSize,
			EntryPrice:   entry,
			Weight:       -weight,
			EntryTime:    now,
		})
	}
	return legs, nil
}

// ErrUnknownInstrument signals a leg referencing an instrument absent from
// the current snapshot; the caller skips the opportunity rather than
// treating this as fatal.
type ErrUnknownInstrument struct {
	Instrument string
}

func (e ErrUnknownInstrument) Error() string {
	return "arbitrage: unknown instrument " + e.Instrument
}

// totalCost sums size*entry_price across every leg, computed once at
// construction time before any validation gate reads it.
func totalCost(legs []Leg) float64 {
	var sum float64
	for _, l := range legs {
		sum += l.Size * l.EntryPrice
	}
	return sum
}

// totalVolume sums leg sizes.
func totalVolume(legs []Leg) float64 {
	var sum float64
	for _, l := range legs {
		sum += l.Size
	}
	return sum
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
