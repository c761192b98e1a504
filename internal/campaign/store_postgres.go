package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coalition/pkg/sentinel"
)

// PostgresDirectory reads campaign flags from the shared campaigns table,
// which the campaign management side of the system writes.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT id, name, slug, allow_endorsements, auto_approve, published
		 FROM campaigns WHERE id = $1`, id)

	var c Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.AllowEndorsements, &c.AutoApprove, &c.Published)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select campaign: %w", err)
	}
	return &c, nil
}

// Put upserts a campaign row. Used by seeding and integration tests.
func (d *PostgresDirectory) Put(ctx context.Context, c *Campaign) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, slug, allow_endorsements, auto_approve, published)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			allow_endorsements = EXCLUDED.allow_endorsements,
			auto_approve = EXCLUDED.auto_approve,
			published = EXCLUDED.published,
			updated_at = now()`,
		c.ID, c.Name, c.Slug, c.AllowEndorsements, c.AutoApprove, c.Published)
	if err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}
	return nil
}
