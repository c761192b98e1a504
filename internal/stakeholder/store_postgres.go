package stakeholder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coalition/internal/address"
	"coalition/internal/geocode"
	"coalition/pkg/emailaddr"
	"coalition/pkg/sentinel"
)

// PostgresStore persists stakeholders in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const stakeholderColumns = `id, email, name, organization, stakeholder_type,
	street_address, city, state, zip_code, county,
	latitude, longitude, geocoded_at, geocoding_failed,
	congressional_district, state_senate_district, state_house_district,
	anonymized, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sh *Stakeholder) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stakeholders (id, email, name, organization, stakeholder_type,
			street_address, city, state, zip_code, county, geocoding_failed, anonymized,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		sh.ID, emailaddr.Normalize(sh.Email), sh.Name, sh.Organization, string(sh.Type),
		sh.Address.Street, sh.Address.City, sh.Address.State, sh.Address.ZIP, sh.Address.County,
		sh.GeocodingFailed, sh.Anonymized, sh.CreatedAt, sh.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert stakeholder: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Stakeholder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+stakeholderColumns+` FROM stakeholders WHERE lower(email) = $1`,
		emailaddr.Normalize(email),
	)
	return scanStakeholder(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Stakeholder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+stakeholderColumns+` FROM stakeholders WHERE id = $1`, id)
	return scanStakeholder(row)
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Stakeholder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stakeholderColumns+` FROM stakeholders WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query stakeholders: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*Stakeholder, len(ids))
	for rows.Next() {
		sh, err := scanStakeholder(rows)
		if err != nil {
			return nil, err
		}
		out[sh.ID] = sh
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, sh *Stakeholder) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE stakeholders SET
			name = $2, organization = $3, stakeholder_type = $4,
			street_address = $5, city = $6, state = $7, zip_code = $8, county = $9,
			latitude = $10, longitude = $11, geocoded_at = $12, geocoding_failed = $13,
			congressional_district = $14, state_senate_district = $15, state_house_district = $16,
			anonymized = $17, updated_at = now()
		WHERE id = $1`,
		sh.ID, sh.Name, sh.Organization, string(sh.Type),
		sh.Address.Street, sh.Address.City, sh.Address.State, sh.Address.ZIP, sh.Address.County,
		sh.Latitude, sh.Longitude, sh.GeocodedAt, sh.GeocodingFailed,
		sh.CongressionalDistrict, sh.StateSenateDistrict, sh.StateHouseDistrict,
		sh.Anonymized,
	)
	if err != nil {
		return fmt.Errorf("update stakeholder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SetEnrichment writes the full enrichment atomically. The guard clauses make
// the write a no-op when the record was geocoded, anonymized, deleted, or its
// mailing address changed since the job was enqueued.
func (s *PostgresStore) SetEnrichment(ctx context.Context, id uuid.UUID, addr address.Normalized, e *geocode.Enrichment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE stakeholders SET
			latitude = $2, longitude = $3, geocoded_at = now(), geocoding_failed = FALSE,
			congressional_district = $4, state_senate_district = $5, state_house_district = $6,
			county = CASE WHEN $7 <> '' THEN $7 ELSE county END,
			updated_at = now()
		WHERE id = $1 AND geocoded_at IS NULL AND NOT anonymized
			AND street_address = $8 AND city = $9 AND state = $10 AND zip_code = $11`,
		id, e.Latitude, e.Longitude,
		e.CongressionalDistrict, e.StateSenateDistrict, e.StateHouseDistrict, e.County,
		addr.Street, addr.City, addr.State, addr.ZIP,
	)
	if err != nil {
		return fmt.Errorf("set enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.FindByID(ctx, id); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkGeocodeFailed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE stakeholders SET geocoding_failed = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark geocode failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Anonymize(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE stakeholders SET
			name = 'Anonymized', organization = '',
			street_address = '', city = '', state = '', zip_code = '', county = '',
			latitude = NULL, longitude = NULL, geocoded_at = NULL, geocoding_failed = FALSE,
			congressional_district = '', state_senate_district = '', state_house_district = '',
			anonymized = TRUE, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("anonymize stakeholder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStakeholder(row rowScanner) (*Stakeholder, error) {
	var sh Stakeholder
	var stype string
	err := row.Scan(
		&sh.ID, &sh.Email, &sh.Name, &sh.Organization, &stype,
		&sh.Address.Street, &sh.Address.City, &sh.Address.State, &sh.Address.ZIP, &sh.Address.County,
		&sh.Latitude, &sh.Longitude, &sh.GeocodedAt, &sh.GeocodingFailed,
		&sh.CongressionalDistrict, &sh.StateSenateDistrict, &sh.StateHouseDistrict,
		&sh.Anonymized, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan stakeholder: %w", err)
	}
	sh.Type = Type(stype)
	return &sh, nil
}
