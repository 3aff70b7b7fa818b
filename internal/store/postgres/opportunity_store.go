package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polymarketbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, type, status, target_instrument, legs_json,
	expected_profit, max_loss, total_cost, net_exposure, value_at_risk,
	expected_shortfall, correlation_risk, identified_at, validated_at,
	expires_at, closed_at, failure_reason`

// Insert stores a newly identified arbitrage opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, rec domain.OpportunityRecord) error {
	const query = `
		INSERT INTO arb_opportunities (
			id, type, status, target_instrument, legs_json,
			expected_profit, max_loss, total_cost, net_exposure, value_at_risk,
			expected_shortfall, correlation_risk, identified_at, validated_at,
			expires_at, closed_at, failure_reason
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Type, rec.Status, rec.TargetInstrument, rec.LegsJSON,
		rec.ExpectedProfit, rec.MaxLoss, rec.TotalCost, rec.NetExposure, rec.ValueAtRisk,
		rec.ExpectedShortfall, rec.CorrelationRisk, rec.IdentifiedAt, rec.ValidatedAt,
		rec.ExpiresAt, rec.ClosedAt, rec.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus transitions an opportunity's stored status, recording the
// closing time and failure reason when the transition is terminal.
func (s *OpportunityStore) UpdateStatus(ctx context.Context, id, status string, closedAt *time.Time, failureReason string) error {
	const query = `
		UPDATE arb_opportunities SET
			status         = $2,
			closed_at      = $3,
			failure_reason = $4
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status, closedAt, failureReason)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a single opportunity record by id.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.OpportunityRecord, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM arb_opportunities WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)

	var rec domain.OpportunityRecord
	if err := row.Scan(
		&rec.ID, &rec.Type, &rec.Status, &rec.TargetInstrument, &rec.LegsJSON,
		&rec.ExpectedProfit, &rec.MaxLoss, &rec.TotalCost, &rec.NetExposure, &rec.ValueAtRisk,
		&rec.ExpectedShortfall, &rec.CorrelationRisk, &rec.IdentifiedAt, &rec.ValidatedAt,
		&rec.ExpiresAt, &rec.ClosedAt, &rec.FailureReason,
	); err != nil {
		return domain.OpportunityRecord{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns opportunity records ordered by identification time,
// most recent first, honoring ListOpts pagination and time filtering.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.OpportunityRecord, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM arb_opportunities WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND identified_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND identified_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY identified_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.OpportunityRecord
	for rows.Next() {
		var rec domain.OpportunityRecord
		if err := rows.Scan(
			&rec.ID, &rec.Type, &rec.Status, &rec.TargetInstrument, &rec.LegsJSON,
			&rec.ExpectedProfit, &rec.MaxLoss, &rec.TotalCost, &rec.NetExposure, &rec.ValueAtRisk,
			&rec.ExpectedShortfall, &rec.CorrelationRisk, &rec.IdentifiedAt, &rec.ValidatedAt,
			&rec.ExpiresAt, &rec.ClosedAt, &rec.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities rows: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of opportunities currently at the given
// status.
func (s *OpportunityStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	const query = `SELECT count(*) FROM arb_opportunities WHERE status = $1`
	var count int64
	if err := s.pool.QueryRow(ctx, query, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count opportunities by status %s: %w", status, err)
	}
	return count, nil
}
