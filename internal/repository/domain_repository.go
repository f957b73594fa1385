package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DomainRepository handles subject-domain data access.
type DomainRepository struct {
	pool *pgxpool.Pool
}

// NewDomainRepository creates a new DomainRepository.
func NewDomainRepository(pool *pgxpool.Pool) *DomainRepository {
	return &DomainRepository{pool: pool}
}

// List retrieves all domains ordered by name.
func (r *DomainRepository) List(ctx context.Context) ([]model.Domain, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug FROM domains ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.Slug); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// GetByID retrieves a domain by ID.
func (r *DomainRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Domain, error) {
	d := &model.Domain{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug FROM domains WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Slug)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create inserts a new domain.
func (r *DomainRepository) Create(ctx context.Context, d *model.Domain) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO domains (name, slug)
		 VALUES ($1, $2)
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		d.Name, d.Slug,
	).Scan(&d.ID)
}
