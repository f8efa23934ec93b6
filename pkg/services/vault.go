package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/crypto"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/repositories"
)

// CredentialVault stores and retrieves encrypted connection descriptors.
// Plaintext descriptors exist only inside a call; everything at rest is an
// opaque AES-GCM blob.
type CredentialVault interface {
	// Store encrypts and saves a descriptor under (user, service name).
	// Returns ErrDuplicateService if the pair already exists, unless the
	// vault was configured to overwrite, in which case the entry is
	// replaced atomically.
	Store(ctx context.Context, userID uuid.UUID, serviceName string, desc *models.ConnectionDescriptor) (*models.Credential, error)

	// Retrieve decrypts the descriptor for (user, service name). A blob
	// sealed under a different key returns ErrCredentialsKeyMismatch.
	Retrieve(ctx context.Context, userID uuid.UUID, serviceName string) (*models.ConnectionDescriptor, error)

	// List returns the user's credential entries without any secret material.
	List(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error)

	// Update re-encrypts and replaces the descriptor for an existing entry.
	Update(ctx context.Context, userID uuid.UUID, serviceName string, desc *models.ConnectionDescriptor) error

	// Delete removes the entry for (user, service name).
	Delete(ctx context.Context, userID uuid.UUID, serviceName string) error
}

// VaultOptions configures vault policy.
type VaultOptions struct {
	// AllowOverwrite makes Store replace an existing (user, service) entry
	// atomically instead of failing with ErrDuplicateService.
	AllowOverwrite bool
}

type credentialVault struct {
	repo      repositories.CredentialRepository
	encryptor *crypto.CredentialEncryptor
	opts      VaultOptions
	logger    *zap.Logger
}

// NewCredentialVault creates a vault backed by the given repository and
// encryptor.
func NewCredentialVault(
	repo repositories.CredentialRepository,
	encryptor *crypto.CredentialEncryptor,
	opts VaultOptions,
	logger *zap.Logger,
) CredentialVault {
	return &credentialVault{
		repo:      repo,
		encryptor: encryptor,
		opts:      opts,
		logger:    logger.Named("vault"),
	}
}

func validateServiceName(serviceName string) error {
	if strings.TrimSpace(serviceName) == "" {
		return fmt.Errorf("%w: service name is required", apperrors.ErrValidation)
	}
	if len(serviceName) > 128 {
		return fmt.Errorf("%w: service name too long", apperrors.ErrValidation)
	}
	return nil
}

func (v *credentialVault) seal(desc *models.ConnectionDescriptor) ([]byte, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	blob, err := v.encryptor.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt descriptor: %w", err)
	}

	return blob, nil
}

func (v *credentialVault) Store(ctx context.Context, userID uuid.UUID, serviceName string, desc *models.ConnectionDescriptor) (*models.Credential, error) {
	if err := validateServiceName(serviceName); err != nil {
		return nil, err
	}

	blob, err := v.seal(desc)
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{
		UserID:      userID,
		ServiceName: serviceName,
	}
	if v.opts.AllowOverwrite {
		err = v.repo.Upsert(ctx, cred, blob)
	} else {
		err = v.repo.Create(ctx, cred, blob)
	}
	if err != nil {
		return nil, err
	}

	v.logger.Info("credential stored",
		zap.String("user_id", userID.String()),
		zap.String("service", serviceName),
		zap.String("type", desc.Type))

	return cred, nil
}

func (v *credentialVault) Retrieve(ctx context.Context, userID uuid.UUID, serviceName string) (*models.ConnectionDescriptor, error) {
	if err := validateServiceName(serviceName); err != nil {
		return nil, err
	}

	_, blob, err := v.repo.GetByService(ctx, userID, serviceName)
	if err != nil {
		return nil, err
	}

	plaintext, err := v.encryptor.Decrypt(blob)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			// The blob is intact but sealed under another key; the operator
			// rotated CREDENTIALS_KEY without re-encrypting.
			v.logger.Error("credential decryption failed",
				zap.String("user_id", userID.String()),
				zap.String("service", serviceName))
			return nil, fmt.Errorf("credential %q: %w", serviceName, apperrors.ErrCredentialsKeyMismatch)
		}
		return nil, err
	}

	var desc models.ConnectionDescriptor
	if err := json.Unmarshal(plaintext, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor: %w", err)
	}

	return &desc, nil
}

func (v *credentialVault) List(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error) {
	return v.repo.List(ctx, userID)
}

func (v *credentialVault) Update(ctx context.Context, userID uuid.UUID, serviceName string, desc *models.ConnectionDescriptor) error {
	if err := validateServiceName(serviceName); err != nil {
		return err
	}

	blob, err := v.seal(desc)
	if err != nil {
		return err
	}

	if err := v.repo.UpdateBlob(ctx, userID, serviceName, blob); err != nil {
		return err
	}

	v.logger.Info("credential updated",
		zap.String("user_id", userID.String()),
		zap.String("service", serviceName))

	return nil
}

// Delete is idempotent: removing a credential that does not exist is not an
// error.
func (v *credentialVault) Delete(ctx context.Context, userID uuid.UUID, serviceName string) error {
	if err := validateServiceName(serviceName); err != nil {
		return err
	}

	if err := v.repo.Delete(ctx, userID, serviceName); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	v.logger.Info("credential deleted",
		zap.String("user_id", userID.String()),
		zap.String("service", serviceName))

	return nil
}

var _ CredentialVault = (*credentialVault)(nil)
