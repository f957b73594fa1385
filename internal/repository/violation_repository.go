package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViolationRepository handles violation data access. Violations are
// append-only; there are no update or delete operations.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Create inserts a single violation.
func (r *ViolationRepository) Create(ctx context.Context, v *model.Violation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO violations (id, session_id, type, detail, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.SessionID, v.Type, v.Detail, v.RecordedAt)
	return err
}

// BulkInsert copies a batch of violations in one round trip.
func (r *ViolationRepository) BulkInsert(ctx context.Context, batch []*model.Violation) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []interface{}{v.ID, v.SessionID, v.Type, v.Detail, v.RecordedAt})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"violations"},
		[]string{"id", "session_id", "type", "detail", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ListBySession retrieves all violations of a session in recording order.
func (r *ViolationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, type, detail, recorded_at
		 FROM violations
		 WHERE session_id = $1
		 ORDER BY recorded_at`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Type, &v.Detail, &v.RecordedAt); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// CountBySession returns the violation count per session for the given IDs.
func (r *ViolationRepository) CountBySession(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, COUNT(*)
		 FROM violations
		 WHERE session_id = ANY($1)
		 GROUP BY session_id`, sessionIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}
