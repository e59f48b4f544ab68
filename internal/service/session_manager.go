package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/target/review-harvester/internal/observability/metrics"
	"github.com/target/review-harvester/internal/ports"
)

// ErrNoSession is returned when an attempt needs a session but none could be opened.
var ErrNoSession = fmt.Errorf("%w: no automation session available", ports.ErrSessionLost)

// SessionManager owns the single automation session used by one job.
type SessionManager struct {
	factory ports.SessionFactory
	logger  *slog.Logger
	metrics metrics.Harvest

	mu          sync.Mutex
	current     ports.Session
	recreations int
}

// NewSessionManager constructs a SessionManager around factory.
func NewSessionManager(factory ports.SessionFactory, logger *slog.Logger, m metrics.Harvest) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{factory: factory, logger: logger, metrics: m}
}

// Open creates the first session.
func (m *SessionManager) Open(ctx context.Context) error {
	if m.factory == nil {
		return errors.New("session factory is required")
	}
	sess, err := m.factory.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	m.mu.Lock()
	old := m.current
	m.current = sess
	m.mu.Unlock()
	m.closeQuietly(old)
	return nil
}

// Current returns the live session, or nil when the last recreation failed.
func (m *SessionManager) Current() ports.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Recreate closes the current session and opens a new one. On failure the manager
// is left without a session and the next attempt reports ErrNoSession.
func (m *SessionManager) Recreate(ctx context.Context) error {
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.recreations++
	m.mu.Unlock()

	m.closeQuietly(old)

	sess, err := m.factory.NewSession(ctx)
	m.metrics.SessionRecreated(err == nil)
	if err != nil {
		return fmt.Errorf("recreate session: %w", err)
	}
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()
	return nil
}

// Recreations reports how many times Recreate was called.
func (m *SessionManager) Recreations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recreations
}

// Close releases the current session. Safe to call more than once.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close()
}

func (m *SessionManager) closeQuietly(sess ports.Session) {
	if sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		m.logger.Debug("close session failed", "error", err)
	}
}
