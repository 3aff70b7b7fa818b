package feed

import "fmt"

// ErrFeedStale is passed to the aggregator's OnFeedStale callback when every known instrument
// in the current snapshot exceeds the staleness budget. Detectors skip
// their pass for that snapshot rather than treating it as fatal.
type ErrFeedStale struct {
	Budget string
}

func (e ErrFeedStale) Error() string {
	return fmt.Sprintf("feed stale: all instruments exceed staleness budget %s", e.Budget)
}

// ErrSequenceGap is a non-fatal warning: a gap was observed in the
// sequence numbers for one (exchange, instrument) stream. The event is
// still processed.
type ErrSequenceGap struct {
	Exchange     string
	InstrumentID string
	Expected     uint64
	Got          uint64
}

func (e ErrSequenceGap) Error() string {
	return fmt.Sprintf("sequence gap on %s/%s: expected > %d, got %d",
		e.Exchange, e.InstrumentID, e.Expected, e.Got)
}
