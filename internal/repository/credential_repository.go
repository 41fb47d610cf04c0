package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

// CredentialRepository manages WebAuthn credential persistence.
type CredentialRepository interface {
	Create(ctx context.Context, credential *domain.Credential) error
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error)
	UpdateSignCount(ctx context.Context, id string, signCount uint32) error
}

type credentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository returns a Postgres-backed implementation.
func NewCredentialRepository(pool *pgxpool.Pool) CredentialRepository {
	return &credentialRepository{pool: pool}
}

func (r *credentialRepository) Create(ctx context.Context, credential *domain.Credential) error {
	const query = `
        INSERT INTO webauthn_credentials (id, user_id, name, public_key, attestation_type, sign_count)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		credential.ID,
		credential.UserID,
		credential.Name,
		credential.PublicKey,
		credential.AttestationType,
		int64(credential.SignCount),
	).Scan(&credential.CreatedAt, &credential.UpdatedAt)
}

func (r *credentialRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	const query = `
        SELECT id, user_id, name, public_key, attestation_type, sign_count, created_at, updated_at
        FROM webauthn_credentials WHERE id=$1`

	return scanCredential(r.pool.QueryRow(ctx, query, id))
}

func (r *credentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error) {
	const query = `
        SELECT id, user_id, name, public_key, attestation_type, sign_count, created_at, updated_at
        FROM webauthn_credentials WHERE user_id=$1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credentials []*domain.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

func (r *credentialRepository) UpdateSignCount(ctx context.Context, id string, signCount uint32) error {
	const query = `
        UPDATE webauthn_credentials SET sign_count=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, int64(signCount), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var credential domain.Credential
	var signCount int64
	if err := row.Scan(
		&credential.ID,
		&credential.UserID,
		&credential.Name,
		&credential.PublicKey,
		&credential.AttestationType,
		&signCount,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	); err != nil {
		return nil, err
	}
	credential.SignCount = uint32(signCount)
	return &credential, nil
}
