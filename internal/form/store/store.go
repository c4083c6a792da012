// Package store is the single source of truth for one wizard session: the
// draft, the active step, per-step completion and submission UI state. Every
// mutation writes a snapshot to a durable Mirror before returning.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/form/formdata"
)

const DefaultStorageKey = "application-form-storage"

const mirrorTimeout = 2 * time.Second

// State is a read-only copy of the store; mutating it has no effect on the store.
type State struct {
	FormData       formdata.Data       `json:"formData"`
	CurrentStep    int                 `json:"currentStep"`
	StepCompletion map[int]bool        `json:"stepCompletion"`
	IsSubmitting   bool                `json:"isSubmitting"`
	Errors         map[string][]string `json:"errors"`
	DraftID        string              `json:"draftId,omitempty"`
	SubmitError    string              `json:"submitError,omitempty"`
}

type persisted struct {
	FormData       formdata.Data `json:"formData"`
	CurrentStep    int           `json:"currentStep"`
	StepCompletion map[int]bool  `json:"stepCompletion"`
	DraftID        string        `json:"draftId,omitempty"`
}

type envelope struct {
	State   persisted `json:"state"`
	Version int       `json:"version"`
}

func emptyState() State {
	return State{
		FormData:       formdata.Data{},
		StepCompletion: map[int]bool{},
		Errors:         map[string][]string{},
	}
}

type Options struct {
	// Key is the mirror key; sessions append their id to the storage key.
	Key       string
	Mirror    Mirror
	StepCount int
	Logger    logger.Logger
}

type Store struct {
	// writeMu orders mirror writes; mu guards state and is never held during I/O.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	state     State
	epoch     uint64
	key       string
	mirror    Mirror
	stepCount int
	logger    logger.Logger
}

// New builds a store and restores any snapshot found under opts.Key.
func New(opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	if opts.Mirror == nil {
		opts.Mirror = NewMemoryMirror()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	s := &Store{
		state:     emptyState(),
		key:       opts.Key,
		mirror:    opts.Mirror,
		stepCount: opts.StepCount,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "form-store", "key": opts.Key}),
	}
	s.restore()
	return s
}

func (s *Store) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	raw, err := s.mirror.Load(ctx, s.key)
	if errors.Is(err, ErrSnapshotNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("Snapshot unavailable, starting empty", map[string]interface{}{"error": err.Error()})
		return
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("Discarding unreadable snapshot", map[string]interface{}{
			"error": apperrors.NewSnapshotCorruptError(s.key, err).Details,
		})
		return
	}

	st := emptyState()
	if env.State.FormData != nil {
		st.FormData = env.State.FormData
	}
	if s.inRange(env.State.CurrentStep) {
		st.CurrentStep = env.State.CurrentStep
	}
	for i, done := range env.State.StepCompletion {
		if s.inRange(i) {
			st.StepCompletion[i] = done
		}
	}
	st.DraftID = env.State.DraftID
	s.state = st

	s.logger.Debug("Restored snapshot", map[string]interface{}{"currentStep": st.CurrentStep, "draftId": st.DraftID})
}

func (s *Store) inRange(i int) bool {
	return i >= 0 && (s.stepCount == 0 || i < s.stepCount)
}

func (s *Store) Key() string { return s.key }

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// Epoch changes whenever the store is reset. Async work compares epochs to drop stale results.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Store) SetFormData(d formdata.Data) {
	s.mutate(func(st *State) { st.FormData = d.Clone() })
}

// UpdateFormData shallow-merges partial into the draft.
func (s *Store) UpdateFormData(partial formdata.Data) {
	s.mutate(func(st *State) { st.FormData = st.FormData.Merge(partial) })
}

// SetField sets one dotted path through the same merge as UpdateFormData and
// returns the partial applied. A bad list index leaves the store untouched.
func (s *Store) SetField(path string, value interface{}) (formdata.Data, error) {
	var (
		partial formdata.Data
		err     error
	)
	s.mutateIf(func(st *State) bool {
		partial, err = st.FormData.WithField(path, value)
		if err != nil {
			return false
		}
		st.FormData = st.FormData.Merge(partial)
		return true
	})
	return partial, err
}

// SetCurrentStep sets the active step without any gating; out-of-range indexes are ignored.
func (s *Store) SetCurrentStep(index int) bool {
	if !s.inRange(index) {
		return false
	}
	s.mutate(func(st *State) { st.CurrentStep = index })
	return true
}

func (s *Store) SetStepCompletion(index int, complete bool) {
	if !s.inRange(index) {
		return
	}
	s.mutate(func(st *State) { st.StepCompletion[index] = complete })
}

func (s *Store) SetIsSubmitting(submitting bool) {
	s.mutate(func(st *State) { st.IsSubmitting = submitting })
}

// TryBeginSubmit sets isSubmitting only if it was false and reports whether it did.
func (s *Store) TryBeginSubmit() bool {
	began := false
	s.mutate(func(st *State) {
		if !st.IsSubmitting {
			st.IsSubmitting = true
			st.SubmitError = ""
			began = true
		}
	})
	return began
}

func (s *Store) SetErrors(errs map[string][]string) {
	s.mutate(func(st *State) { st.Errors = copyErrors(errs) })
}

func (s *Store) SetDraftID(id string) {
	s.mutate(func(st *State) { st.DraftID = id })
}

// SetDraftIDIfEpoch records id only when no reset happened since epoch was read.
// A stale epoch writes nothing, so a late save cannot bring back a cleared snapshot.
func (s *Store) SetDraftIDIfEpoch(id string, epoch uint64) bool {
	applied := false
	s.mutateIf(func(st *State) bool {
		if s.epoch != epoch {
			return false
		}
		st.DraftID = id
		applied = true
		return true
	})
	return applied
}

func (s *Store) SetSubmitError(message string) {
	s.mutate(func(st *State) { st.SubmitError = message })
}

func (s *Store) DismissSubmitError() {
	s.SetSubmitError("")
}

// ResetForm restores the initial empty state and deletes the mirrored snapshot.
func (s *Store) ResetForm() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.state = emptyState()
	s.epoch++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.Delete(ctx, s.key); err != nil {
		metrics.MirrorWrites.WithLabelValues(s.mirror.Name(), "error").Inc()
		s.logger.Warn("Failed to clear snapshot", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.MirrorWrites.WithLabelValues(s.mirror.Name(), "deleted").Inc()
}

// mutate applies fn under the lock and writes the snapshot before returning.
func (s *Store) mutate(fn func(st *State)) {
	s.mutateIf(func(st *State) bool {
		fn(st)
		return true
	})
}

// mutateIf is mutate for changes that may not apply; the snapshot is written
// only when fn reports true.
func (s *Store) mutateIf(fn func(st *State) bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, changed, err := s.apply(fn)
	if !changed {
		return
	}
	if err != nil {
		s.logger.Error("Failed to encode snapshot", map[string]interface{}{"error": err.Error()})
		return
	}
	s.persist(raw)
}

func (s *Store) apply(fn func(st *State) bool) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(&s.state) {
		return nil, false, nil
	}
	raw, err := json.Marshal(envelope{State: persisted{
		FormData:       s.state.FormData,
		CurrentStep:    s.state.CurrentStep,
		StepCompletion: s.state.StepCompletion,
		DraftID:        s.state.DraftID,
	}})
	return raw, true, err
}

func (s *Store) persist(raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := s.mirror.Save(ctx, s.key, raw); err != nil {
		metrics.MirrorWrites.WithLabelValues(s.mirror.Name(), "error").Inc()
		s.logger.Warn("Failed to write snapshot", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.MirrorWrites.WithLabelValues(s.mirror.Name(), "saved").Inc()
}

func copyState(st State) State {
	out := st
	out.FormData = st.FormData.Clone()
	out.StepCompletion = make(map[int]bool, len(st.StepCompletion))
	for k, v := range st.StepCompletion {
		out.StepCompletion[k] = v
	}
	out.Errors = copyErrors(st.Errors)
	return out
}

func copyErrors(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
