package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCodeAlreadyRedeemed = errors.New("access code already redeemed")

// AccessCodeRepository handles access code data access. Codes are stored
// hashed; the label prefix of the code is the lookup key.
type AccessCodeRepository struct {
	pool *pgxpool.Pool
}

// NewAccessCodeRepository creates a new AccessCodeRepository.
func NewAccessCodeRepository(pool *pgxpool.Pool) *AccessCodeRepository {
	return &AccessCodeRepository{pool: pool}
}

// GetByLabel retrieves an access code row by its public label.
func (r *AccessCodeRepository) GetByLabel(ctx context.Context, label string) (*model.AccessCode, error) {
	c := &model.AccessCode{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code_hash, label, domain_id, expires_at, redeemed_at, created_at
		 FROM access_codes WHERE label = $1`, label,
	).Scan(&c.ID, &c.CodeHash, &c.Label, &c.DomainID, &c.ExpiresAt, &c.RedeemedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Redeem marks a code as consumed. The WHERE guard makes redemption atomic:
// two concurrent logins with the same code cannot both succeed.
func (r *AccessCodeRepository) Redeem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_codes
		 SET redeemed_at = NOW()
		 WHERE id = $1 AND redeemed_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeAlreadyRedeemed
	}
	return nil
}

// Create inserts a new access code.
func (r *AccessCodeRepository) Create(ctx context.Context, c *model.AccessCode) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO access_codes (code_hash, label, domain_id, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.CodeHash, c.Label, c.DomainID, c.ExpiresAt,
	).Scan(&c.ID, &c.CreatedAt)
}
