package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// These follow the Interface Segregation Principle: the archiver only
// requires the query methods it actually calls, not the full store
// interfaces.
// ---------------------------------------------------------------------------

// OpportunityArchiveStore provides read access to opportunity records for
// archival purposes.
type OpportunityArchiveStore interface {
	// ListRecent with a Until filter returns opportunities identified
	// at or before the cutoff (the bound is inclusive), used here as the
	// before-query.
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.OpportunityRecord, error)
}

// SnapshotArchiveStore supplies raw encoded market snapshots recorded for
// archival purposes. When a snapshot store is configured, the orchestrator
// records each tick's quotes through its SnapshotRecorder, and the same
// store serves this interface (postgres.SnapshotStore implements both).
type SnapshotArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]SnapshotRecord, error)
}

// SnapshotRecord is a single archived market snapshot encoding.
type SnapshotRecord struct {
	InstrumentID string
	Data         []byte
	Timestamp    time.Time
}

// ArchiveImpl implements domain.Archiver by querying the opportunity and
// snapshot stores for old records, serializing them to JSONL, and
// uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer        domain.BlobWriter
	opportunities OpportunityArchiveStore
	snapshots     SnapshotArchiveStore
	audit         domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	opportunities OpportunityArchiveStore,
	snapshots SnapshotArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:        writer,
		opportunities: opportunities,
		snapshots:     snapshots,
		audit:         audit,
	}
}

// ArchiveOpportunities queries all opportunity records identified at or
// before the cutoff, serializes them to JSONL, and uploads the file to S3 at
// archive/opportunities/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.opportunities.ListRecent(ctx, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	count := int64(len(recs))
	if err := a.audit.Log(ctx, "archive.opportunities", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive opportunities audit log: %w", err)
	}

	return count, nil
}

// ArchiveSnapshots queries all market snapshots recorded before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/snapshots/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.snapshots.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("snapshots", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	count := int64(len(recs))
	if err := a.audit.Log(ctx, "archive.snapshots", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
	}

	return count, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/opportunities/2025-01.jsonl
//	archive/snapshots/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
