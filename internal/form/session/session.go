// Package session composes one applicant's wizard: store, step validation,
// draft persistence and submission behind a single set of user actions.
package session

import (
	"context"
	"sync"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/form/drafts"
	"admissions-portal/internal/form/formdata"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/navigation"
	"admissions-portal/internal/form/steps"
	"admissions-portal/internal/form/store"
	"admissions-portal/internal/form/submission"
)

// View is everything a client needs to render the wizard.
type View struct {
	SessionID      string              `json:"sessionId"`
	CurrentStep    int                 `json:"currentStep"`
	StepKey        string              `json:"stepKey"`
	StepTitle      string              `json:"stepTitle"`
	Component      string              `json:"component"`
	StepCount      int                 `json:"stepCount"`
	FormData       formdata.Data       `json:"formData"`
	StepCompletion map[int]bool        `json:"stepCompletion"`
	Errors         map[string][]string `json:"errors"`
	IsSubmitting   bool                `json:"isSubmitting"`
	DraftID        string              `json:"draftId,omitempty"`
	DraftSaved     bool                `json:"draftSaved"`
	Banner         string              `json:"banner,omitempty"`
	State          submission.State    `json:"state"`
	RedirectTo     string              `json:"redirectTo,omitempty"`
	Controls       navigation.Controls `json:"controls"`
	Progress       navigation.Progress `json:"progress"`
}

type Session struct {
	id        string
	store     *store.Store
	validator *steps.Validator
	drafts    *drafts.Service
	submit    *submission.Controller
	loader    gateway.DraftLoader
	logger    logger.Logger

	// mu serializes user actions; it is never held across a submission.
	mu         sync.Mutex
	lastActive time.Time
}

func (s *Session) ID() string { return s.id }

func (s *Session) Store() *store.Store { return s.store }

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

// Update merges partial into the draft, revalidates every step it touches
// plus the active one, and schedules a draft save.
func (s *Session) Update(partial formdata.Data) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.store.Snapshot().IsSubmitting {
		return s.view(), apperrors.NewSubmissionInFlightError()
	}
	if len(partial) == 0 {
		return s.view(), nil
	}

	s.store.UpdateFormData(partial)
	s.afterEdit(formdata.Sections(partial))
	return s.view(), nil
}

// SetField sets one dotted path; it goes through the same path as Update.
func (s *Session) SetField(path string, value interface{}) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if path == "" {
		return s.view(), apperrors.NewInvalidRequestError("field path is required")
	}
	if s.store.Snapshot().IsSubmitting {
		return s.view(), apperrors.NewSubmissionInFlightError()
	}

	if err := s.validator.Schema().CheckPath(path); err != nil {
		return s.view(), apperrors.NewInvalidRequestError(err.Error())
	}

	partial, err := s.store.SetField(path, value)
	if err != nil {
		return s.view(), apperrors.NewInvalidRequestError(err.Error())
	}
	s.afterEdit(formdata.Sections(partial))
	return s.view(), nil
}

func (s *Session) afterEdit(sections []string) {
	snap := s.store.Snapshot()
	touched := s.validator.Registry().StepsForSections(sections)

	activeDone := false
	for _, idx := range touched {
		res := s.validator.ValidateStep(snap.FormData, idx)
		s.store.SetStepCompletion(idx, res.Valid)
		if idx == snap.CurrentStep {
			s.store.SetErrors(res.Errors)
			activeDone = true
		}
	}
	if !activeDone {
		res := s.validator.ValidateStep(snap.FormData, snap.CurrentStep)
		s.store.SetStepCompletion(snap.CurrentStep, res.Valid)
		s.store.SetErrors(res.Errors)
	}

	s.drafts.Touch()
}

// checkStep revalidates index and records the verdict; errors are shown only for the active step.
func (s *Session) checkStep(data formdata.Data, index, current int) steps.Result {
	res := s.validator.ValidateStep(data, index)
	s.store.SetStepCompletion(index, res.Valid)
	if index == current {
		s.store.SetErrors(res.Errors)
	}
	return res
}

// Next advances one step only when the active step validates.
func (s *Session) Next() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	snap := s.store.Snapshot()
	if snap.IsSubmitting {
		metrics.StepTransitions.WithLabelValues("next", "busy").Inc()
		return s.view(), apperrors.NewSubmissionInFlightError()
	}
	if snap.CurrentStep >= s.validator.Registry().Last() {
		metrics.StepTransitions.WithLabelValues("next", "invalid").Inc()
		return s.view(), apperrors.NewInvalidStepError(snap.CurrentStep + 1)
	}

	if res := s.checkStep(snap.FormData, snap.CurrentStep, snap.CurrentStep); !res.Valid {
		metrics.StepTransitions.WithLabelValues("next", "blocked").Inc()
		return s.view(), apperrors.NewStepIncompleteError(snap.CurrentStep)
	}

	s.enter(snap.FormData, snap.CurrentStep+1)
	metrics.StepTransitions.WithLabelValues("next", "ok").Inc()
	return s.view(), nil
}

func (s *Session) Previous() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	snap := s.store.Snapshot()
	if snap.IsSubmitting {
		metrics.StepTransitions.WithLabelValues("previous", "busy").Inc()
		return s.view(), apperrors.NewSubmissionInFlightError()
	}
	if snap.CurrentStep == 0 {
		metrics.StepTransitions.WithLabelValues("previous", "invalid").Inc()
		return s.view(), apperrors.NewInvalidStepError(-1)
	}

	s.enter(snap.FormData, snap.CurrentStep-1)
	metrics.StepTransitions.WithLabelValues("previous", "ok").Inc()
	return s.view(), nil
}

// GoTo jumps to index. Going back is always allowed; going forward requires
// every step before index to validate.
func (s *Session) GoTo(index int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if !s.validator.Registry().InRange(index) {
		metrics.StepTransitions.WithLabelValues("goto", "invalid").Inc()
		return s.view(), apperrors.NewInvalidStepError(index)
	}
	snap := s.store.Snapshot()
	if snap.IsSubmitting {
		metrics.StepTransitions.WithLabelValues("goto", "busy").Inc()
		return s.view(), apperrors.NewSubmissionInFlightError()
	}

	for i := snap.CurrentStep; i < index; i++ {
		if res := s.checkStep(snap.FormData, i, snap.CurrentStep); !res.Valid {
			metrics.StepTransitions.WithLabelValues("goto", "blocked").Inc()
			return s.view(), apperrors.NewStepIncompleteError(i)
		}
	}

	s.enter(snap.FormData, index)
	metrics.StepTransitions.WithLabelValues("goto", "ok").Inc()
	return s.view(), nil
}

// enter activates index, clears inline errors and refreshes its completion flag.
func (s *Session) enter(data formdata.Data, index int) {
	s.store.SetCurrentStep(index)
	s.store.SetErrors(nil)
	res := s.validator.ValidateStep(data, index)
	s.store.SetStepCompletion(index, res.Valid)
}

// RestoreDraft replaces the session's data with a saved draft, keeps the
// draft id so later saves overwrite it, and revalidates every step.
func (s *Session) RestoreDraft(ctx context.Context, draftID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.loader == nil {
		return s.view(), apperrors.NewInvalidRequestError("drafts cannot be restored in this deployment")
	}
	if s.store.Snapshot().IsSubmitting {
		return s.view(), apperrors.NewSubmissionInFlightError()
	}

	draft, err := s.loader.LoadDraft(ctx, draftID)
	if err != nil {
		return s.view(), err
	}
	if draft.Data == nil {
		draft.Data = formdata.Data{}
	}

	s.drafts.Cancel()
	s.store.SetFormData(draft.Data)
	s.store.SetDraftID(draft.DraftID)
	s.store.SetCurrentStep(0)
	s.store.SetErrors(nil)

	reg := s.validator.Registry()
	for i := 0; i < reg.Count(); i++ {
		res := s.validator.ValidateStep(draft.Data, i)
		s.store.SetStepCompletion(i, res.Valid)
	}

	s.logger.Info("Draft restored", map[string]interface{}{"draftId": draft.DraftID, "updatedAt": draft.UpdatedAt})
	return s.view(), nil
}

// Submit hands the draft to the submission controller.
func (s *Session) Submit(ctx context.Context, corr submission.Correlation) (*submission.Outcome, View, error) {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()

	out, err := s.submit.Submit(ctx, corr)

	s.mu.Lock()
	defer s.mu.Unlock()
	return out, s.view(), err
}

// SaveDraft saves immediately instead of waiting for the debounce.
func (s *Session) SaveDraft(ctx context.Context) (View, error) {
	err := s.drafts.SaveNow(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.view(), err
}

func (s *Session) DismissBanner() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.store.DismissSubmitError()
	return s.view()
}

// Reset discards the application and its local snapshot.
func (s *Session) Reset() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.drafts.Cancel()
	s.store.ResetForm()
	s.submit.Restart()
	return s.view()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Session) view() View {
	snap := s.store.Snapshot()
	reg := s.validator.Registry()
	step, _ := reg.Step(snap.CurrentStep)

	return View{
		SessionID:      s.id,
		CurrentStep:    snap.CurrentStep,
		StepKey:        step.Key,
		StepTitle:      step.Title,
		Component:      step.Component,
		StepCount:      reg.Count(),
		FormData:       snap.FormData,
		StepCompletion: snap.StepCompletion,
		Errors:         snap.Errors,
		IsSubmitting:   snap.IsSubmitting,
		DraftID:        snap.DraftID,
		DraftSaved:     s.drafts.Acknowledged(),
		Banner:         snap.SubmitError,
		State:          s.submit.State(),
		RedirectTo:     s.submit.RedirectTo(),
		Controls: navigation.Render(navigation.View{
			CurrentStep:  snap.CurrentStep,
			StepCount:    reg.Count(),
			StepComplete: snap.StepCompletion[snap.CurrentStep],
			IsSubmitting: snap.IsSubmitting,
		}),
		Progress: navigation.RenderProgress(reg, snap.StepCompletion, snap.CurrentStep),
	}
}

// Close stops background timers; the snapshot stays in the mirror.
func (s *Session) Close() {
	s.drafts.Close()
	s.submit.Close()
}
