package db

import (
	"context"
	"sync"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/cristianortiz/auctionEngine/internal/shared/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
)

// Conn is the part of *pgx.Conn the manager relies on.
type Conn interface {
	Ping(ctx context.Context) error
	IsClosed() bool
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

// Dialer opens a new physical connection.
type Dialer func(ctx context.Context) (Conn, error)

// PgxDialer dials postgres with pgx using the given connection string.
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Manager owns exactly one physical connection. Every statement runs under mu,
// so at most one statement is in flight at any instant.
type Manager struct {
	mu   sync.Mutex
	conn Conn
	dial Dialer

	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	// set after every successful (re)connect, consumed by CheckAndClearReconnectFlag
	reconnected bool
	// incremented by every successful dial; 0 until the first one
	generation uint64
}

type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n*backoff before attempt n+1.
func WithBackoff(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.backoff = d
		}
	}
}

// New builds a manager for dsn. No connection is opened until Connect or the first statement.
func New(dsn string, opts ...Option) *Manager {
	m := &Manager{
		dial:        PgxDialer(dsn),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens the connection eagerly.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureConnected(ctx)
}

// Close releases the physical connection.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close(ctx)
	m.conn = nil
	return err
}

// CheckAndClearReconnectFlag reports, exactly once per (re)connection, that
// statements prepared on a previous connection are gone.
func (m *Manager) CheckAndClearReconnectFlag() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconnected {
		m.reconnected = false
		return true
	}
	return false
}

// Generation identifies the current physical connection. It changes after
// every successful (re)connect and, unlike the reconnect flag, reading it
// consumes nothing, so any number of callers can compare against it.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Exec runs a statement that returns no rows.
func (m *Manager) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.exec(ctx, "exec", sql, args...)
}

// Prepare registers a named statement on the current connection.
func (m *Manager) Prepare(ctx context.Context, name, sql string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(ctx); err != nil {
		return err
	}
	if _, err := m.conn.Prepare(ctx, name, sql); err != nil {
		return newQueryError("prepare "+name, err)
	}
	return nil
}

// ExecPrepared runs a named statement that returns no rows.
func (m *Manager) ExecPrepared(ctx context.Context, name string, args ...any) (pgconn.CommandTag, error) {
	return m.exec(ctx, name, name, args...)
}

// QueryPrepared runs a named statement and hands the rows to scan. The rows
// are only valid inside scan: the connection stays locked until they are drained.
func (m *Manager) QueryPrepared(ctx context.Context, name string, scan func(pgx.Rows) error, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(ctx); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.DBStatementDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	rows, err := m.conn.Query(ctx, name, args...)
	if err != nil {
		return newQueryError(name, err)
	}
	scanErr := scan(rows)
	rows.Close()
	if err := rows.Err(); err != nil {
		return newQueryError(name, err)
	}
	return scanErr
}

func (m *Manager) exec(ctx context.Context, op, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(ctx); err != nil {
		return pgconn.CommandTag{}, err
	}

	start := time.Now()
	tag, err := m.conn.Exec(ctx, sql, args...)
	metrics.DBStatementDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return pgconn.CommandTag{}, newQueryError(op, err)
	}
	return tag, nil
}

// ensureConnected must be called with mu held.
func (m *Manager) ensureConnected(ctx context.Context) error {
	if m.conn == nil {
		return m.reconnect(ctx)
	}
	if m.conn.IsClosed() {
		log.Warn("Database connection lost, attempting reconnect")
		return m.reconnect(ctx)
	}
	if err := m.conn.Ping(ctx); err != nil {
		log.Warn("Database ping failed, attempting reconnect", zap.Error(err))
		return m.reconnect(ctx)
	}
	return nil
}

// reconnect must be called with mu held.
func (m *Manager) reconnect(ctx context.Context) error {
	if m.conn != nil {
		_ = m.conn.Close(ctx)
		m.conn = nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		log.Info("Connecting to database",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", m.maxAttempts),
		)

		conn, err := m.dial(ctx)
		if err == nil {
			m.conn = conn
			m.reconnected = true
			m.generation++
			metrics.DBReconnects.Inc()
			log.Info("Database connected", zap.Int("attempt", attempt), zap.Uint64("generation", m.generation))
			return nil
		}

		lastErr = err
		log.Warn("Database connect attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < m.maxAttempts {
			if err := m.sleep(ctx, m.backoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	metrics.DBReconnectFailures.Inc()
	log.Error("Database reconnect exhausted", zap.Int("attempts", m.maxAttempts), zap.Error(lastErr))
	return &ConnectionError{Attempts: m.maxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
