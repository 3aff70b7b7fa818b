package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	s3blob "github.com/alanyoungcy/polymarketbot/internal/blob/s3"
)

// SnapshotStore records encoded market snapshots for later cold-storage
// archival. The live pipeline does not require read access to this data;
// it exists solely to give the archiver's SnapshotArchiveStore dependency
// something real to query.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given
// connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Insert records one instrument's encoded snapshot data at recordedAt.
func (s *SnapshotStore) Insert(ctx context.Context, instrumentID string, data []byte, recordedAt time.Time) error {
	const query = `INSERT INTO market_snapshots (instrument_id, data, recorded_at) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, instrumentID, data, recordedAt); err != nil {
		return fmt.Errorf("postgres: insert market snapshot %s: %w", instrumentID, err)
	}
	return nil
}

// ListBefore returns every snapshot recorded strictly before the cutoff,
// implementing s3blob.SnapshotArchiveStore.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]s3blob.SnapshotRecord, error) {
	const query = `SELECT instrument_id, data, recorded_at FROM market_snapshots WHERE recorded_at < $1 ORDER BY recorded_at`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market snapshots before %v: %w", before, err)
	}
	defer rows.Close()

	var out []s3blob.SnapshotRecord
	for rows.Next() {
		var rec s3blob.SnapshotRecord
		if err := rows.Scan(&rec.InstrumentID, &rec.Data, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan market snapshot: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list market snapshots rows: %w", err)
	}
	return out, nil
}

// DeleteBefore removes snapshot rows recorded strictly before the cutoff,
// intended to run after an archive upload has been verified.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM market_snapshots WHERE recorded_at < $1`
	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete market snapshots before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ s3blob.SnapshotArchiveStore = (*SnapshotStore)(nil)
