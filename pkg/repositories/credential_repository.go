package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/database"
	"github.com/askdb-io/askdb-engine/pkg/models"
)

// CredentialRepository defines the interface for credential data access.
// Blobs are stored as opaque encrypted bytes - encryption/decryption is
// handled by the service layer.
type CredentialRepository interface {
	// Create inserts a new credential. Returns ErrDuplicateService if the
	// (user, service) pair already exists.
	Create(ctx context.Context, cred *models.Credential, encryptedBlob []byte) error

	// Upsert inserts a credential or atomically replaces the blob of an
	// existing (user, service) pair.
	Upsert(ctx context.Context, cred *models.Credential, encryptedBlob []byte) error

	// GetByService retrieves a credential by user and service name.
	// Returns the model and the encrypted blob.
	GetByService(ctx context.Context, userID uuid.UUID, serviceName string) (*models.Credential, []byte, error)

	// List retrieves all credential entries for a user, without blobs.
	List(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error)

	// UpdateBlob replaces the encrypted blob for an existing credential.
	UpdateBlob(ctx context.Context, userID uuid.UUID, serviceName string, encryptedBlob []byte) error

	// Delete removes a credential by user and service name.
	Delete(ctx context.Context, userID uuid.UUID, serviceName string) error
}

// credentialRepository implements CredentialRepository using PostgreSQL.
type credentialRepository struct {
	db *database.DB
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *database.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, cred *models.Credential, encryptedBlob []byte) error {
	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	query := `
		INSERT INTO credentials (user_id, service_name, encrypted_blob, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		cred.UserID,
		cred.ServiceName,
		encryptedBlob,
		cred.CreatedAt,
		cred.UpdatedAt,
	).Scan(&cred.ID)
	if err != nil {
		// Unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrDuplicateService
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.Credential, encryptedBlob []byte) error {
	now := time.Now()

	// ON CONFLICT keeps the replace atomic; concurrent stores for the same
	// (user, service) pair never expose a partially-written blob.
	query := `
		INSERT INTO credentials (user_id, service_name, encrypted_blob, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, service_name)
		DO UPDATE SET encrypted_blob = EXCLUDED.encrypted_blob, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		cred.UserID,
		cred.ServiceName,
		encryptedBlob,
		now,
	).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

func (r *credentialRepository) GetByService(ctx context.Context, userID uuid.UUID, serviceName string) (*models.Credential, []byte, error) {
	query := `
		SELECT id, user_id, service_name, encrypted_blob, created_at, updated_at
		FROM credentials
		WHERE user_id = $1 AND service_name = $2`

	var cred models.Credential
	var blob []byte
	err := r.db.QueryRow(ctx, query, userID, serviceName).Scan(
		&cred.ID,
		&cred.UserID,
		&cred.ServiceName,
		&blob,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, fmt.Errorf("credential %q: %w", serviceName, apperrors.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, blob, nil
}

func (r *credentialRepository) List(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error) {
	query := `
		SELECT id, user_id, service_name, created_at, updated_at
		FROM credentials
		WHERE user_id = $1
		ORDER BY service_name`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		var cred models.Credential
		err := rows.Scan(
			&cred.ID,
			&cred.UserID,
			&cred.ServiceName,
			&cred.CreatedAt,
			&cred.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return creds, nil
}

func (r *credentialRepository) UpdateBlob(ctx context.Context, userID uuid.UUID, serviceName string, encryptedBlob []byte) error {
	query := `
		UPDATE credentials
		SET encrypted_blob = $3, updated_at = $4
		WHERE user_id = $1 AND service_name = $2`

	result, err := r.db.Exec(ctx, query, userID, serviceName, encryptedBlob, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("credential %q: %w", serviceName, apperrors.ErrNotFound)
	}

	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, userID uuid.UUID, serviceName string) error {
	query := `DELETE FROM credentials WHERE user_id = $1 AND service_name = $2`

	result, err := r.db.Exec(ctx, query, userID, serviceName)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("credential %q: %w", serviceName, apperrors.ErrNotFound)
	}

	return nil
}

var _ CredentialRepository = (*credentialRepository)(nil)
