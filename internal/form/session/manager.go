package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/common/observability"
	"admissions-portal/internal/form/drafts"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/steps"
	"admissions-portal/internal/form/store"
	"admissions-portal/internal/form/submission"

	"github.com/google/uuid"
)

type Config struct {
	StorageKey string
	Drafts     drafts.Config
	Submission submission.Config
}

type Dependencies struct {
	Validator *steps.Validator
	Mirror    store.Mirror
	Backend   gateway.Backend
	// DraftLoader defaults to Backend when it can load drafts.
	DraftLoader   gateway.DraftLoader
	Observability *observability.Observability
	Logger        logger.Logger
	// OnRedirect is told when an applicant's confirmation redirect fires.
	OnRedirect func(sessionID, url string)
}

// Manager owns the live sessions. A session id that is not in memory but
// still has a snapshot in the mirror is resumed on first access.
type Manager struct {
	cfg    Config
	deps   Dependencies
	logger logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(cfg Config, deps Dependencies) *Manager {
	if cfg.StorageKey == "" {
		cfg.StorageKey = store.DefaultStorageKey
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Mirror == nil {
		deps.Mirror = store.NewMemoryMirror()
	}
	if deps.DraftLoader == nil {
		if loader, ok := deps.Backend.(gateway.DraftLoader); ok {
			deps.DraftLoader = loader
		}
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "session-manager"}),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) key(id string) string {
	return fmt.Sprintf("%s:%s", m.cfg.StorageKey, id)
}

// Create starts a new, empty session.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("session manager closed")
	}

	id := uuid.New().String()
	s := m.open(id)
	m.logger.Info("Session created", map[string]interface{}{"sessionId": id})
	return s, nil
}

// Restore starts a session seeded from a saved draft. Nothing is kept when
// the draft cannot be loaded.
func (m *Manager) Restore(ctx context.Context, draftID string) (*Session, error) {
	s, err := m.Create()
	if err != nil {
		return nil, err
	}
	if _, err := s.RestoreDraft(ctx, draftID); err != nil {
		m.evict(s.ID())
		return nil, err
	}
	m.logger.Info("Session restored from draft", map[string]interface{}{"sessionId": s.ID(), "draftId": draftID})
	return s, nil
}

// Get returns a live session or resumes one from its snapshot.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewSessionNotFoundError(id)
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, apperrors.NewSessionNotFoundError(id)
	}

	if _, err := m.deps.Mirror.Load(ctx, m.key(id)); err != nil {
		if !errors.Is(err, store.ErrSnapshotNotFound) {
			m.logger.Warn("Snapshot lookup failed", map[string]interface{}{"sessionId": id, "error": err})
		}
		return nil, apperrors.NewSessionNotFoundError(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := m.open(id)
	m.logger.Info("Session resumed", map[string]interface{}{"sessionId": id, "step": s.store.Snapshot().CurrentStep})
	return s, nil
}

// open builds a session under m.mu.
func (m *Manager) open(id string) *Session {
	log := m.deps.Logger.WithFields(map[string]interface{}{"sessionId": id})

	st := store.New(store.Options{
		Key:       m.key(id),
		Mirror:    m.deps.Mirror,
		StepCount: m.deps.Validator.Registry().Count(),
		Logger:    log,
	})
	draftSvc := drafts.NewService(m.cfg.Drafts, st, m.deps.Backend, m.deps.Observability, log)
	ctrl := submission.NewController(m.cfg.Submission, st, m.deps.Validator, m.deps.Backend, draftSvc,
		func(url string) { m.redirected(id, url) }, m.deps.Observability, log)

	s := &Session{
		id:         id,
		store:      st,
		validator:  m.deps.Validator,
		drafts:     draftSvc,
		submit:     ctrl,
		loader:     m.deps.DraftLoader,
		logger:     log,
		lastActive: time.Now(),
	}
	m.sessions[id] = s
	metrics.ActiveSessions.Inc()
	return s
}

// redirected retires a session whose applicant has left for the confirmation page.
func (m *Manager) redirected(id, url string) {
	if m.deps.OnRedirect != nil {
		m.deps.OnRedirect(id, url)
	}
	m.evict(id)
	m.logger.Info("Session finished", map[string]interface{}{"sessionId": id, "redirectTo": url})
}

func (m *Manager) evict(id string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		metrics.ActiveSessions.Dec()
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return s
}

// Delete abandons a session and clears its snapshot.
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Reset()
	m.evict(id)
	m.logger.Info("Session deleted", map[string]interface{}{"sessionId": id})
	return nil
}

// EvictIdle drops sessions idle for longer than maxIdle; their snapshots stay resumable.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if time.Since(s.LastActive()) > maxIdle && !s.store.Snapshot().IsSubmitting {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		m.evict(id)
	}
	if len(idle) > 0 {
		m.logger.Debug("Evicted idle sessions", map[string]interface{}{"count": len(idle)})
	}
	return len(idle)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session's timers.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.evict(id)
	}
}
