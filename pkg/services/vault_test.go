package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/crypto"
	"github.com/askdb-io/askdb-engine/pkg/models"
)

func testDescriptor() *models.ConnectionDescriptor {
	return &models.ConnectionDescriptor{
		Type:     "postgres",
		Host:     "db.internal",
		Port:     5432,
		Database: "sales",
		User:     "reader",
		Secret:   "hunter2",
	}
}

func newTestVault(t *testing.T, repo *mockCredentialRepo, key string) CredentialVault {
	t.Helper()
	encryptor, err := crypto.NewCredentialEncryptor(key)
	require.NoError(t, err)
	return NewCredentialVault(repo, encryptor, VaultOptions{}, zap.NewNop())
}

func TestVaultStoreAndRetrieveRoundTrip(t *testing.T) {
	userID := uuid.New()
	var storedBlob []byte

	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential, blob []byte) error {
			cred.ID = uuid.New()
			storedBlob = blob
			return nil
		},
		GetByServiceFunc: func(ctx context.Context, uid uuid.UUID, serviceName string) (*models.Credential, []byte, error) {
			return &models.Credential{UserID: uid, ServiceName: serviceName}, storedBlob, nil
		},
	}
	vault := newTestVault(t, repo, "test-passphrase")

	cred, err := vault.Store(context.Background(), userID, "warehouse", testDescriptor())
	require.NoError(t, err)
	assert.Equal(t, "warehouse", cred.ServiceName)
	assert.NotContains(t, string(storedBlob), "hunter2", "secret must not appear in stored blob")

	desc, err := vault.Retrieve(context.Background(), userID, "warehouse")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", desc.Secret)
	assert.Equal(t, "db.internal", desc.Host)
}

func TestVaultRetrieveWrongKey(t *testing.T) {
	userID := uuid.New()
	var storedBlob []byte

	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential, blob []byte) error {
			storedBlob = blob
			return nil
		},
		GetByServiceFunc: func(ctx context.Context, uid uuid.UUID, serviceName string) (*models.Credential, []byte, error) {
			return &models.Credential{}, storedBlob, nil
		},
	}

	writer := newTestVault(t, repo, "original-key")
	_, err := writer.Store(context.Background(), userID, "warehouse", testDescriptor())
	require.NoError(t, err)

	reader := newTestVault(t, repo, "rotated-key")
	_, err = reader.Retrieve(context.Background(), userID, "warehouse")
	assert.ErrorIs(t, err, apperrors.ErrCredentialsKeyMismatch)
}

func TestVaultStoreRejectsInvalidDescriptor(t *testing.T) {
	vault := newTestVault(t, &mockCredentialRepo{}, "key")

	desc := testDescriptor()
	desc.Host = ""

	_, err := vault.Store(context.Background(), uuid.New(), "warehouse", desc)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVaultRejectsEmptyServiceName(t *testing.T) {
	vault := newTestVault(t, &mockCredentialRepo{}, "key")

	_, err := vault.Store(context.Background(), uuid.New(), "  ", testDescriptor())
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = vault.Retrieve(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVaultStorePropagatesDuplicate(t *testing.T) {
	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential, blob []byte) error {
			return apperrors.ErrDuplicateService
		},
	}
	vault := newTestVault(t, repo, "key")

	_, err := vault.Store(context.Background(), uuid.New(), "warehouse", testDescriptor())
	assert.ErrorIs(t, err, apperrors.ErrDuplicateService)
}

func TestVaultStoreOverwritesWhenAllowed(t *testing.T) {
	var upserts int
	repo := &mockCredentialRepo{
		UpsertFunc: func(ctx context.Context, cred *models.Credential, blob []byte) error {
			upserts++
			cred.ID = uuid.New()
			return nil
		},
		CreateFunc: func(ctx context.Context, cred *models.Credential, blob []byte) error {
			t.Fatal("overwriting vault must use the upsert path")
			return nil
		},
	}
	encryptor, err := crypto.NewCredentialEncryptor("key")
	require.NoError(t, err)
	vault := NewCredentialVault(repo, encryptor, VaultOptions{AllowOverwrite: true}, zap.NewNop())

	_, err = vault.Store(context.Background(), uuid.New(), "warehouse", testDescriptor())
	require.NoError(t, err)
	_, err = vault.Store(context.Background(), uuid.New(), "warehouse", testDescriptor())
	require.NoError(t, err)
	assert.Equal(t, 2, upserts)
}

func TestVaultDeleteIdempotent(t *testing.T) {
	repo := &mockCredentialRepo{
		DeleteFunc: func(ctx context.Context, userID uuid.UUID, serviceName string) error {
			return apperrors.ErrNotFound
		},
	}
	vault := newTestVault(t, repo, "key")

	assert.NoError(t, vault.Delete(context.Background(), uuid.New(), "gone-already"))
}

func TestVaultUpdateReencrypts(t *testing.T) {
	userID := uuid.New()
	var updatedBlob []byte

	repo := &mockCredentialRepo{
		UpdateBlobFunc: func(ctx context.Context, uid uuid.UUID, serviceName string, blob []byte) error {
			updatedBlob = blob
			return nil
		},
		GetByServiceFunc: func(ctx context.Context, uid uuid.UUID, serviceName string) (*models.Credential, []byte, error) {
			return &models.Credential{}, updatedBlob, nil
		},
	}
	vault := newTestVault(t, repo, "key")

	desc := testDescriptor()
	desc.Secret = "rotated-password"
	require.NoError(t, vault.Update(context.Background(), userID, "warehouse", desc))

	got, err := vault.Retrieve(context.Background(), userID, "warehouse")
	require.NoError(t, err)
	assert.Equal(t, "rotated-password", got.Secret)
}
