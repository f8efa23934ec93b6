package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
)

// Credential is a stored, encrypted connection descriptor for one external
// database, keyed by (user, service name). The plaintext descriptor never
// persists; only the encrypted blob is stored.
type Credential struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ServiceName string    `json:"service_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConnectionDescriptor is the decrypted form of a credential blob: everything
// needed to open a connection to one external database. It exists only
// transiently in memory; callers must Zero() it as soon as the connection is
// established.
type ConnectionDescriptor struct {
	Type     string `json:"type"` // "postgres", "sqlserver"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Secret   string `json:"secret"`
	Schema   string `json:"schema,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

// Validate checks the descriptor is structurally complete.
func (d *ConnectionDescriptor) Validate() error {
	switch {
	case d.Type == "":
		return fmt.Errorf("%w: type is required", apperrors.ErrValidation)
	case d.Host == "":
		return fmt.Errorf("%w: host is required", apperrors.ErrValidation)
	case d.Port <= 0 || d.Port > 65535:
		return fmt.Errorf("%w: port must be in 1..65535", apperrors.ErrValidation)
	case d.Database == "":
		return fmt.Errorf("%w: database is required", apperrors.ErrValidation)
	case d.User == "":
		return fmt.Errorf("%w: user is required", apperrors.ErrValidation)
	}
	return nil
}

// Zero overwrites the secret material in place. Go strings are immutable, so
// this replaces references rather than scrubbing pages; it still shortens the
// window in which the secret is reachable from live objects.
func (d *ConnectionDescriptor) Zero() {
	d.Secret = ""
	d.User = ""
	d.Host = ""
}
