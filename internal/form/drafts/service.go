// Package drafts keeps a remote draft loosely in sync with a session's store.
// Saves are debounced, best-effort and never surface errors to the applicant.
package drafts

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/common/observability"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/store"
)

type Config struct {
	Debounce    time.Duration
	AckDuration time.Duration
	// MaxRetries caps consecutive automatic retries after failures; the next edit resets it.
	MaxRetries  int
	SaveTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:    2 * time.Second,
		AckDuration: 3 * time.Second,
		MaxRetries:  5,
		SaveTimeout: 10 * time.Second,
	}
}

type Status struct {
	Saving              bool      `json:"saving"`
	Acknowledged        bool      `json:"acknowledged"`
	LastSavedAt         time.Time `json:"lastSavedAt,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

type Service struct {
	cfg    Config
	store  *store.Store
	saver  gateway.DraftSaver
	obs    *observability.Observability
	logger logger.Logger

	// inflight holds one token; whoever owns it is the only save running.
	inflight chan struct{}

	mu          sync.Mutex
	timer       *time.Timer
	ackTimer    *time.Timer
	pending     bool
	saving      bool
	failures    int
	ack         bool
	lastSavedAt time.Time
	closed      bool
}

func NewService(cfg Config, st *store.Store, saver gateway.DraftSaver, obs *observability.Observability, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.SaveTimeout == 0 {
		cfg.SaveTimeout = DefaultConfig().SaveTimeout
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		saver:    saver,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "draft-persistence", "key": st.Key()}),
		inflight: make(chan struct{}, 1),
	}
}

// Touch records a change: the debounce timer restarts and the retry budget refills.
func (s *Service) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.failures = 0
	s.scheduleLocked()
}

func (s *Service) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
}

func (s *Service) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.inflight <- struct{}{}:
	default:
		// a save is running; run again once it finishes
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.saving = true
	s.mu.Unlock()

	_ = s.save(context.Background())
}

// SaveNow saves immediately, waiting for any in-flight save first.
func (s *Service) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	select {
	case s.inflight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.saving = true
	s.mu.Unlock()

	return s.save(ctx)
}

// save must be called holding the inflight token; it releases it.
func (s *Service) save(parent context.Context) error {
	// read fresh at send time, never from the schedule
	snap := s.store.Snapshot()
	epoch := s.store.Epoch()

	var (
		resp *gateway.DraftResponse
		err  error
	)
	if len(snap.FormData) > 0 {
		ctx, cancel := context.WithTimeout(parent, s.cfg.SaveTimeout)
		resp, err = s.saver.SaveDraft(ctx, gateway.DraftRequest{DraftID: snap.DraftID, Data: snap.FormData})
		cancel()
		if err == nil && (resp == nil || !resp.Success) {
			msg := ""
			if resp != nil {
				msg = resp.Message
			}
			if msg == "" {
				msg = "backend reported failure"
			}
			err = apperrors.NewDraftSaveFailedError(errors.New(msg))
		}
	}

	s.mu.Lock()
	defer func() {
		s.saving = false
		<-s.inflight
		if s.pending && !s.closed {
			s.pending = false
			s.scheduleLocked()
		}
		s.mu.Unlock()
	}()

	if s.closed {
		s.logger.Debug("Discarding draft result after close", nil)
		return nil
	}
	if len(snap.FormData) == 0 {
		return nil
	}

	if err != nil {
		s.failures++
		metrics.DraftSaves.WithLabelValues("failed").Inc()
		s.obs.RecordDraftSave(parent, "failed")
		fields := map[string]interface{}{
			"error":    err.Error(),
			"attempt":  s.failures,
			"draftId":  snap.DraftID,
			"maxRetry": s.cfg.MaxRetries,
		}
		if s.failures <= s.cfg.MaxRetries {
			s.logger.Warn("Draft save failed, retrying on next cycle", fields)
			s.scheduleLocked()
		} else {
			s.logger.Warn("Draft save failed, waiting for next edit", fields)
		}
		return err
	}

	s.failures = 0
	metrics.DraftSaves.WithLabelValues("saved").Inc()
	s.obs.RecordDraftSave(parent, "saved")

	if resp.DraftID != "" && resp.DraftID != snap.DraftID {
		if !s.store.SetDraftIDIfEpoch(resp.DraftID, epoch) {
			s.logger.Debug("Discarding draft id from before reset", map[string]interface{}{"draftId": resp.DraftID})
			return nil
		}
	}

	s.lastSavedAt = time.Now()
	s.ack = true
	if s.ackTimer != nil {
		s.ackTimer.Stop()
	}
	s.ackTimer = time.AfterFunc(s.cfg.AckDuration, s.dismissAck)

	s.logger.Debug("Draft saved", map[string]interface{}{"draftId": resp.DraftID})
	return nil
}

func (s *Service) dismissAck() {
	s.mu.Lock()
	s.ack = false
	s.mu.Unlock()
}

// Acknowledged reports whether the transient "draft saved" notice is showing.
func (s *Service) Acknowledged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ack
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Saving:              s.saving,
		Acknowledged:        s.ack,
		LastSavedAt:         s.lastSavedAt,
		ConsecutiveFailures: s.failures,
	}
}

// Cancel drops any scheduled save without closing the service.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
}

// Close stops timers. A save still in flight completes but its result is discarded.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.ackTimer != nil {
		s.ackTimer.Stop()
	}
	s.ack = false
}
