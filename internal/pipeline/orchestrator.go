package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polymarketbot/internal/arbitrage"
	"github.com/alanyoungcy/polymarketbot/internal/domain"
	"github.com/alanyoungcy/polymarketbot/internal/feed"
	"github.com/alanyoungcy/polymarketbot/internal/market"
	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
	"github.com/alanyoungcy/polymarketbot/internal/notify"
)

// detectionLockTTL bounds how long one instance holds the per-tick detection
// lock, so a crashed holder never wedges the others out permanently.
const detectionLockTTL = 2 * time.Second

// Orchestrator wires the feed aggregator, the mispricing detector registry,
// and the arbitrage engine into the five-step sequence run on every
// published snapshot: detectors update and poll, the engine turns each
// mispricing into a validated opportunity, and the result reaches the
// active set and any registered consumer. The cold-storage archiver runs
// independently on its own cron schedule.
type Orchestrator struct {
	aggregator *feed.Aggregator
	detector   mispricing.Detector
	engine     *arbitrage.Engine
	archiver   *Archiver

	store            domain.OpportunityStore
	notifier         *notify.Notifier
	snapshotRecorder SnapshotRecorder
	lockManager      domain.LockManager
	stalenessBudget  time.Duration

	archiveCron string
	logger      *slog.Logger

	staleMu   sync.Mutex
	feedStale bool
}

// SnapshotRecorder persists an encoded market snapshot for later
// cold-storage archival. The orchestrator calls it once per instrument per
// tick when configured; a nil recorder disables snapshot persistence
// entirely and the archiver's snapshot pass simply archives nothing.
type SnapshotRecorder interface {
	Insert(ctx context.Context, instrumentID string, data []byte, recordedAt time.Time) error
}

// NewOrchestrator creates an Orchestrator. store and notifier are optional:
// either may be nil, in which case the corresponding side effect
// (persistence, notification) is skipped.
func NewOrchestrator(
	aggregator *feed.Aggregator,
	detector mispricing.Detector,
	engine *arbitrage.Engine,
	archiver *Archiver,
	store domain.OpportunityStore,
	notifier *notify.Notifier,
	archiveCron string,
	stalenessBudget time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		aggregator:      aggregator,
		detector:        detector,
		engine:          engine,
		archiver:        archiver,
		store:           store,
		notifier:        notifier,
		archiveCron:     archiveCron,
		stalenessBudget: stalenessBudget,
		logger:          logger.With(slog.String("component", "orchestrator")),
	}
	aggregator.OnSnapshot(o.onSnapshot)
	aggregator.OnFeedStale(o.onFeedStale)
	aggregator.OnSequenceGap(o.onSequenceGap)
	return o
}

// SetSnapshotRecorder configures persistence of raw market snapshots,
// feeding the archiver's snapshot pass. Call before Run.
func (o *Orchestrator) SetSnapshotRecorder(r SnapshotRecorder) {
	o.snapshotRecorder = r
}

// SetLockManager configures distributed-lock coordination. When set, the
// orchestrator acquires a short-lived lock before detecting on a given
// snapshot tick, so that when multiple instances consume the same feed only
// one of them runs detection for that tick. Call before Run.
func (o *Orchestrator) SetLockManager(lm domain.LockManager) {
	o.lockManager = lm
}

// Run starts the feed aggregator and the archiver cron as concurrent
// goroutines using an errgroup. Each goroutine respects ctx cancellation.
// If any goroutine returns a non-context error, the errgroup cancels the
// shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting", slog.String("archive_cron", o.archiveCron))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting feed aggregator")
		err := o.aggregator.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("feed aggregator: %w", err)
	})

	if o.archiver != nil && o.archiveCron != "" {
		g.Go(func() error {
			o.logger.Info("starting archiver cron")
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// onSnapshot implements the pipeline's per-snapshot sequence: detectors
// update and poll, the engine processes each mispricing into an
// opportunity and validates it, and the expiry sweep runs last so a
// freshly validated opportunity is never swept in the same pass it was
// created.
func (o *Orchestrator) onSnapshot(ctx context.Context, snap market.MarketSnapshot) {
	o.recordSnapshot(ctx, snap)

	if !o.acquireDetectionLock(ctx, snap) {
		return
	}

	if o.consumeFeedStale() {
		o.logger.Debug("skipping detection pass for stale feed", slog.Time("snapshot_time", snap.SnapshotTime()))
		o.engine.Sweep(snap.SnapshotTime())
		return
	}

	fresh := snap.FilterStale(snap.SnapshotTime(), o.stalenessBudget)

	o.detector.UpdateMarketData(fresh)
	detections := o.detector.DetectOpportunities()

	for _, d := range detections {
		opp, err := o.engine.ProcessMispricing(d, fresh)
		if err != nil {
			o.logger.Debug("skipped mispricing",
				slog.String("target", d.TargetInstrument),
				slog.String("error", err.Error()),
			)
			continue
		}

		validated, err := o.engine.ValidateOpportunity(opp.ID, fresh)
		if err != nil {
			o.persist(ctx, validated)
			continue
		}

		o.persist(ctx, validated)
		o.announce(ctx, validated)
	}

	o.engine.Sweep(snap.SnapshotTime())
}

// onFeedStale marks the next detection pass to be skipped. Per the feed
// aggregator's contract, a globally stale snapshot is a warning, not a
// fatal error: detectors simply sit out that tick.
func (o *Orchestrator) onFeedStale(err feed.ErrFeedStale) {
	o.logger.Warn("feed stale, skipping next detection pass", slog.String("budget", err.Budget))
	o.staleMu.Lock()
	o.feedStale = true
	o.staleMu.Unlock()
}

// onSequenceGap logs a sequence gap. The event that caused it is still
// processed by the aggregator, so no detection pass is skipped.
func (o *Orchestrator) onSequenceGap(err feed.ErrSequenceGap) {
	o.logger.Warn("sequence gap detected",
		slog.String("exchange", err.Exchange),
		slog.String("instrument", err.InstrumentID),
		slog.Uint64("expected", err.Expected),
		slog.Uint64("got", err.Got),
	)
}

// consumeFeedStale reports and clears the feed-stale flag, so a single
// stale tick skips exactly one detection pass.
func (o *Orchestrator) consumeFeedStale() bool {
	o.staleMu.Lock()
	defer o.staleMu.Unlock()
	stale := o.feedStale
	o.feedStale = false
	return stale
}

// recordSnapshot persists each instrument's quote as of this tick, when a
// snapshot recorder is configured. Failures are logged, not propagated,
// matching the pipeline's error-handling design of treating runtime
// persistence failures as non-fatal.
func (o *Orchestrator) recordSnapshot(ctx context.Context, snap market.MarketSnapshot) {
	if o.snapshotRecorder == nil {
		return
	}
	for instrumentID, quote := range snap.Quotes() {
		data, err := json.Marshal(quote)
		if err != nil {
			o.logger.Warn("encoding snapshot record failed", slog.String("instrument", instrumentID), slog.String("error", err.Error()))
			continue
		}
		if err := o.snapshotRecorder.Insert(ctx, instrumentID, data, snap.SnapshotTime()); err != nil {
			o.logger.Warn("persisting snapshot record failed", slog.String("instrument", instrumentID), slog.String("error", err.Error()))
		}
	}
}

// acquireDetectionLock reports whether this instance should run detection
// for snap. With no lock manager configured, every instance proceeds
// unconditionally. Otherwise it races to hold a lock keyed by the
// snapshot's timestamp; the loser skips the tick rather than emitting a
// duplicate detection pass over the same snapshot, and the lock is left to
// expire rather than actively released so a slow instance can't reacquire
// it and double-process.
func (o *Orchestrator) acquireDetectionLock(ctx context.Context, snap market.MarketSnapshot) bool {
	if o.lockManager == nil {
		return true
	}
	key := fmt.Sprintf("pipeline:detect:%d", snap.SnapshotTime().UnixNano())
	if _, err := o.lockManager.Acquire(ctx, key, detectionLockTTL); err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			o.logger.Warn("detection lock acquisition failed", slog.String("error", err.Error()))
		}
		return false
	}
	return true
}

// persist writes the opportunity's current state to durable storage, when
// a store is configured. Persistence failures are logged, not propagated:
// per the error-handling design, only startup configuration errors are
// fatal.
func (o *Orchestrator) persist(ctx context.Context, opp arbitrage.Opportunity) {
	if o.store == nil {
		return
	}
	rec, err := toOpportunityRecord(opp)
	if err != nil {
		o.logger.Warn("encoding opportunity record failed", slog.String("id", opp.ID), slog.String("error", err.Error()))
		return
	}
	if err := o.store.Insert(ctx, rec); err != nil {
		o.logger.Warn("persisting opportunity failed", slog.String("id", opp.ID), slog.String("error", err.Error()))
	}
}

// announce fires a notification for a validated opportunity, when a
// notifier is configured.
func (o *Orchestrator) announce(ctx context.Context, opp arbitrage.Opportunity) {
	if o.notifier == nil {
		return
	}
	msg := fmt.Sprintf("%s opportunity %s: expected profit %.4f, VaR %.4f",
		opp.Type, opp.ID, opp.ExpectedProfit, opp.ValueAtRisk)
	if err := o.notifier.Notify(ctx, "opportunity_validated", "Opportunity validated", msg); err != nil {
		o.logger.Warn("notification failed", slog.String("id", opp.ID), slog.String("error", err.Error()))
	}
}

// toOpportunityRecord converts an arbitrage.Opportunity into its durable
// representation. Legs are JSON-encoded since the store schema treats them
// as an opaque payload.
func toOpportunityRecord(opp arbitrage.Opportunity) (domain.OpportunityRecord, error) {
	legsJSON, err := json.Marshal(opp.Legs)
	if err != nil {
		return domain.OpportunityRecord{}, fmt.Errorf("marshal legs: %w", err)
	}

	var validatedAt *time.Time
	if !opp.ValidationTime.IsZero() {
		t := opp.ValidationTime
		validatedAt = &t
	}

	target := opp.MispricingSource.TargetInstrument

	return domain.OpportunityRecord{
		ID:                opp.ID,
		Type:              string(opp.Type),
		Status:            string(opp.Status),
		TargetInstrument:  target,
		LegsJSON:          legsJSON,
		ExpectedProfit:    opp.ExpectedProfit,
		MaxLoss:           opp.MaxLoss,
		TotalCost:         opp.TotalCost,
		NetExposure:       opp.NetExposure,
		ValueAtRisk:       opp.ValueAtRisk,
		ExpectedShortfall: opp.ExpectedShortfall,
		CorrelationRisk:   opp.CorrelationRisk,
		IdentifiedAt:      opp.IdentificationTime,
		ValidatedAt:       validatedAt,
		ExpiresAt:         opp.ExpiryTime,
		FailureReason:     opp.FailureReason,
	}, nil
}
