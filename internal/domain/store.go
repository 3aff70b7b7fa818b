package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityRecord is the flattened, storable projection of an arbitrage
// opportunity at a terminal or checkpoint status. The arbitrage package owns
// the live, richly-typed opportunity; this record is what survives it.
type OpportunityRecord struct {
	ID                string
	Type              string
	Status            string
	TargetInstrument  string
	LegsJSON          []byte
	ExpectedProfit    float64
	MaxLoss           float64
	TotalCost         float64
	NetExposure       float64
	ValueAtRisk       float64
	ExpectedShortfall float64
	CorrelationRisk   float64
	IdentifiedAt      time.Time
	ValidatedAt       *time.Time
	ExpiresAt         time.Time
	ClosedAt          *time.Time
	FailureReason     string
}

// OpportunityStore persists arbitrage opportunity history for post-hoc
// review. The core pipeline itself is stateless (see external interfaces);
// this store is an ambient concern, not part of detection or validation.
type OpportunityStore interface {
	Insert(ctx context.Context, rec OpportunityRecord) error
	UpdateStatus(ctx context.Context, id, status string, closedAt *time.Time, failureReason string) error
	GetByID(ctx context.Context, id string) (OpportunityRecord, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]OpportunityRecord, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
