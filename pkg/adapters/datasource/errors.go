package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAuthenticationFailed indicates the stored credentials were rejected
	// by the external database.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNetworkUnreachable indicates the external database could not be reached.
	ErrNetworkUnreachable = errors.New("database unreachable")
	// ErrConnectTimeout indicates the connection (or the wait for a free
	// connection slot) did not complete within the configured timeout.
	ErrConnectTimeout = errors.New("connection timed out")
	// ErrSessionExpired indicates the session outlived its TTL or was closed;
	// the caller must open a fresh session.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnsupportedType indicates no adapter is registered for the
	// descriptor's database type.
	ErrUnsupportedType = errors.New("unsupported datasource type")
)

// ClassifyConnectError maps a driver-level connection failure onto one of
// the sentinel errors above, preserving the original error for logging.
// The classification decides how the failure is reported to the user:
// bad credentials are their problem, an unreachable host is ours.
func ClassifyConnectError(err error) error {
	if err == nil {
		return nil
	}

	// Already classified
	for _, sentinel := range []error{ErrAuthenticationFailed, ErrNetworkUnreachable, ErrConnectTimeout} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	// PostgreSQL auth errors carry SQLSTATE class 28
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "28") {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	lower := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"):
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)

	case strings.Contains(lower, "password authentication failed"),
		strings.Contains(lower, "login failed"), // mssql phrasing
		strings.Contains(lower, "login error"),
		strings.Contains(lower, "authentication failed"):
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)

	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "no route to host"):
		return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}

	return fmt.Errorf("failed to connect: %w", err)
}
