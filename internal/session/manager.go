// Package session tracks the live review sessions of the service.
package session

import (
	"context"
	"sync"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/internal/workflow"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	metricsOnce  sync.Once
	liveSessions prometheus.Gauge
)

func liveSessionsGauge() prometheus.Gauge {
	metricsOnce.Do(func() {
		liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "review_sessions_live",
			Help: "Number of review sessions currently open",
		})
	})
	return liveSessions
}

// Manager owns the live sessions, keyed by session id.
type Manager struct {
	log  *zap.SugaredLogger
	deps workflow.Dependencies
	cfg  workflow.Config

	mu       sync.RWMutex
	sessions map[string]*workflow.Session
}

// NewManager creates a session manager.
func NewManager(deps workflow.Dependencies, cfg workflow.Config) *Manager {
	return &Manager{
		log:      logger.GetLogger().Named("session_manager"),
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[string]*workflow.Session),
	}
}

// Open creates and starts a review session for a case. The session removes
// itself from the manager when it closes.
func (m *Manager) Open(ctx context.Context, caseID string) (*workflow.Session, error) {
	if caseID == "" {
		return nil, apperrors.ValidationFailed("Case id is required", "Provide the case to review")
	}

	id := uuid.New().String()
	s := workflow.NewSession(id, caseID, m.deps, m.cfg)
	s.OnClosed = func() {
		m.remove(id)
	}
	s.OnRequestNewEntity = func(initialTerm string) {
		m.log.Infow("External court creation requested", "sessionId", id, "initialTerm", initialTerm)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	liveSessionsGauge().Inc()

	m.log.Infow("Review session opened", "sessionId", id, "caseId", caseID)
	s.Start(ctx)
	return s, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*workflow.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, apperrors.NotFound("Session", id)
	}
	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	_, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if exists {
		liveSessionsGauge().Dec()
		m.log.Infow("Review session closed", "sessionId", id)
	}
}
