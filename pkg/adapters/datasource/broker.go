package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/logging"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/retry"
)

// Broker hands out Sessions to external databases while enforcing a global
// cap on concurrently open connections. Callers that arrive while all slots
// are taken wait up to the connect timeout for one to free up.
type Broker struct {
	slots          chan struct{}
	sessionTTL     time.Duration
	connectTimeout time.Duration
	logger         *zap.Logger
}

// BrokerOptions configures a Broker.
type BrokerOptions struct {
	MaxOpenConnections int
	SessionTTL         time.Duration
	ConnectTimeout     time.Duration
}

// NewBroker creates a broker with the given limits.
func NewBroker(opts BrokerOptions, logger *zap.Logger) *Broker {
	if opts.MaxOpenConnections <= 0 {
		opts.MaxOpenConnections = 32
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 5 * time.Minute
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	return &Broker{
		slots:          make(chan struct{}, opts.MaxOpenConnections),
		sessionTTL:     opts.SessionTTL,
		connectTimeout: opts.ConnectTimeout,
		logger:         logger.Named("broker"),
	}
}

// Open acquires a connection slot, dials the database described by desc, and
// returns a Session bound to the broker's TTL. The wait for a free slot and
// the dial are each bounded by the connect timeout.
//
// The caller owns the returned Session and must Close it; Close is safe to
// call from a deferred function even if the session already expired.
func (b *Broker) Open(ctx context.Context, desc *models.ConnectionDescriptor) (*Session, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	connect := GetConnector(desc.Type)
	if connect == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, desc.Type)
	}

	deadline := time.NewTimer(b.connectTimeout)
	defer deadline.Stop()

	select {
	case b.slots <- struct{}{}:
	case <-deadline.C:
		return nil, fmt.Errorf("%w: all %d connection slots busy", ErrConnectTimeout, cap(b.slots))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Slot acquired; release it on any failure below.
	dialCtx, cancel := context.WithTimeout(ctx, b.connectTimeout)
	defer cancel()

	var conn Conn
	err := retry.DoIfRetryable(dialCtx, retry.DefaultConfig(), func() error {
		var dialErr error
		conn, dialErr = connect(dialCtx, desc)
		return dialErr
	})
	if err != nil {
		<-b.slots
		classified := ClassifyConnectError(err)
		b.logger.Warn("connection failed",
			zap.String("type", desc.Type),
			zap.String("error", logging.SanitizeError(classified)))
		return nil, classified
	}

	s := &Session{
		conn:      conn,
		broker:    b,
		expiresAt: time.Now().Add(b.sessionTTL),
	}
	s.watchdog = time.AfterFunc(b.sessionTTL, s.expire)

	b.logger.Debug("session opened",
		zap.String("type", desc.Type),
		zap.Time("expires_at", s.expiresAt))

	return s, nil
}

// Session is an exclusive, time-limited connection to one external database.
// It is not shared between turns: every turn opens a fresh session and closes
// it when done. After the TTL elapses every new operation returns
// ErrSessionExpired; an operation already in flight finishes first, and the
// connection is torn down as soon as it does.
type Session struct {
	conn      Conn
	broker    *Broker
	expiresAt time.Time
	watchdog  *time.Timer

	mu           sync.Mutex
	released     bool
	inFlight     int
	closePending bool
}

// ExpiresAt returns the wall-clock time at which the session dies.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// Dialect returns the SQL dialect name of the underlying connection.
func (s *Session) Dialect() string {
	return s.conn.Dialect()
}

// Query runs a bounded SELECT against the external database.
func (s *Session) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryResult, error) {
	if err := s.beginOp(); err != nil {
		return nil, err
	}
	defer s.endOp()
	return s.conn.Query(ctx, sqlQuery, params, limit)
}

// Tables lists the user tables of the external database.
func (s *Session) Tables(ctx context.Context) ([]Table, error) {
	if err := s.beginOp(); err != nil {
		return nil, err
	}
	defer s.endOp()
	return s.conn.Tables(ctx)
}

// Columns lists the columns of one table.
func (s *Session) Columns(ctx context.Context, schemaName, tableName string) ([]Column, error) {
	if err := s.beginOp(); err != nil {
		return nil, err
	}
	defer s.endOp()
	return s.conn.Columns(ctx, schemaName, tableName)
}

// ForeignKeys lists all foreign key relationships.
func (s *Session) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	if err := s.beginOp(); err != nil {
		return nil, err
	}
	defer s.endOp()
	return s.conn.ForeignKeys(ctx)
}

// Close tears down the connection and returns the slot to the broker.
// Idempotent: the first of Close and TTL expiry wins, the other is a no-op,
// and the slot is released exactly once either way.
func (s *Session) Close() error {
	return s.release()
}

// beginOp admits one operation onto the underlying connection. The
// connection serves one operation at a time per the session's exclusivity,
// but expiry can fire at any moment; the in-flight count keeps teardown
// from yanking the connection mid-operation.
func (s *Session) beginOp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || time.Now().After(s.expiresAt) {
		return ErrSessionExpired
	}
	s.inFlight++
	return nil
}

func (s *Session) endOp() {
	s.mu.Lock()
	s.inFlight--
	teardown := s.closePending && s.inFlight == 0
	if teardown {
		s.closePending = false
	}
	s.mu.Unlock()

	if teardown {
		_ = s.teardown()
	}
}

func (s *Session) expire() {
	if err := s.release(); err == nil {
		s.broker.logger.Debug("session expired", zap.Time("expires_at", s.expiresAt))
	}
}

// release marks the session dead; new operations fail with
// ErrSessionExpired immediately. The connection and the broker slot are
// torn down right away when idle, or by endOp once the in-flight
// operation finishes.
func (s *Session) release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	busy := s.inFlight > 0
	if busy {
		s.closePending = true
	}
	s.mu.Unlock()

	s.watchdog.Stop()
	if busy {
		return nil
	}
	return s.teardown()
}

func (s *Session) teardown() error {
	err := s.conn.Close()
	<-s.broker.slots
	return err
}
