package endorsement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coalition/pkg/sentinel"
)

// PostgresStore persists endorsements in PostgreSQL. The partial unique index
// on (stakeholder_id, campaign_id) WHERE status <> 'rejected' enforces the
// one-active-endorsement invariant; ConsumeAndTransition runs in a transaction
// so the token consume and the status change commit together or not at all.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const endorsementColumns = `id, campaign_id, stakeholder_id, statement, public_display,
	terms_accepted, status, rejection_reason, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, e *Endorsement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO endorsements (id, campaign_id, stakeholder_id, statement, public_display,
			terms_accepted, status, rejection_reason, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)`,
		e.ID, e.CampaignID, e.StakeholderID, e.Statement, e.PublicDisplay,
		e.TermsAccepted, string(e.Status), e.RejectionReason, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert endorsement: %w", err)
	}
	e.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Endorsement, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+endorsementColumns+` FROM endorsements WHERE id = $1`, id)
	return scanEndorsement(row)
}

func (s *PostgresStore) FindActive(ctx context.Context, stakeholderID, campaignID uuid.UUID) (*Endorsement, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+endorsementColumns+` FROM endorsements
		 WHERE stakeholder_id = $1 AND campaign_id = $2 AND status <> 'rejected'`,
		stakeholderID, campaignID)
	return scanEndorsement(row)
}

func (s *PostgresStore) Update(ctx context.Context, e *Endorsement) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE endorsements SET
			statement = $3, public_display = $4, terms_accepted = $5,
			status = $6, rejection_reason = $7,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version`,
		e.ID, e.Version, e.Statement, e.PublicDisplay, e.TermsAccepted,
		string(e.Status), e.RejectionReason,
	)
	var newVersion int64
	if err := row.Scan(&newVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, ferr := s.FindByID(ctx, e.ID); errors.Is(ferr, sentinel.ErrNotFound) {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update endorsement: %w", err)
	}
	e.Version = newVersion
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Endorsement, error) {
	query := `SELECT ` + endorsementColumns + ` FROM endorsements WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var conds []string
	if f.CampaignID != nil {
		conds = append(conds, "campaign_id = "+arg(*f.CampaignID))
	}
	if f.Status != nil {
		conds = append(conds, "status = "+arg(string(*f.Status)))
	}
	if f.SubmittedAfter != nil {
		conds = append(conds, "created_at >= "+arg(*f.SubmittedAfter))
	}
	if f.SubmittedBefore != nil {
		conds = append(conds, "created_at <= "+arg(*f.SubmittedBefore))
	}
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list endorsements: %w", err)
	}
	defer rows.Close()
	return scanEndorsements(rows)
}

func (s *PostgresStore) ListPublic(ctx context.Context, campaignID uuid.UUID) ([]*Endorsement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+endorsementColumns+` FROM endorsements
		 WHERE campaign_id = $1 AND status = 'approved' AND public_display
		 ORDER BY created_at`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("list public endorsements: %w", err)
	}
	defer rows.Close()
	return scanEndorsements(rows)
}

func (s *PostgresStore) IssueToken(ctx context.Context, t *VerificationToken) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin issue token: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE verification_tokens SET consumed_at = now()
		 WHERE endorsement_id = $1 AND consumed_at IS NULL`,
		t.EndorsementID)
	if err != nil {
		return fmt.Errorf("invalidate prior tokens: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO verification_tokens (id, endorsement_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.EndorsementID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) FindToken(ctx context.Context, tokenHash string) (*VerificationToken, error) {
	var t VerificationToken
	err := s.pool.QueryRow(ctx,
		`SELECT id, endorsement_id, token_hash, expires_at, consumed_at, created_at
		 FROM verification_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.ID, &t.EndorsementID, &t.TokenHash, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ConsumeAndTransition(ctx context.Context, tokenID, endorsementID uuid.UUID, to Status) (*Endorsement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE endorsements SET status = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+endorsementColumns,
		endorsementID, string(to))
	e, err := scanEndorsement(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if _, ferr := s.FindByID(ctx, endorsementID); errors.Is(ferr, sentinel.ErrNotFound) {
				return nil, sentinel.ErrNotFound
			}
			return nil, sentinel.ErrInvalidState
		}
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE verification_tokens SET consumed_at = now()
		 WHERE id = $1 AND consumed_at IS NULL`,
		tokenID)
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another caller consumed the token first; rolling back restores the
		// endorsement so their transition stands alone.
		return nil, sentinel.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return e, nil
}

func scanEndorsement(row pgx.Row) (*Endorsement, error) {
	var e Endorsement
	var status string
	err := row.Scan(
		&e.ID, &e.CampaignID, &e.StakeholderID, &e.Statement, &e.PublicDisplay,
		&e.TermsAccepted, &status, &e.RejectionReason, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan endorsement: %w", err)
	}
	e.Status = Status(status)
	return &e, nil
}

func scanEndorsements(rows pgx.Rows) ([]*Endorsement, error) {
	var out []*Endorsement
	for rows.Next() {
		e, err := scanEndorsement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
