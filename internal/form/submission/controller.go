// Package submission runs the final validate-and-transmit step of the wizard.
package submission

import (
	"context"
	"sync"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/common/observability"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/steps"
	"admissions-portal/internal/form/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateEditing          State = "editing"
	StateSubmitting       State = "submitting"
	StateSubmittedSuccess State = "submitted_success"
)

// Redirector sends the applicant to url once the confirmation has been shown.
type Redirector func(url string)

// DraftCanceller stops pending draft saves once the application is final.
type DraftCanceller interface {
	Cancel()
}

type Config struct {
	RedirectDelay   time.Duration
	ConfirmationURL string
	Timeout         time.Duration
}

// Correlation carries the program/course context the applicant arrived with.
type Correlation struct {
	ProgramID string `json:"programId,omitempty"`
	CourseID  string `json:"courseId,omitempty"`
}

type Outcome struct {
	State         State               `json:"state"`
	ApplicationID string              `json:"applicationId,omitempty"`
	Message       string              `json:"message,omitempty"`
	RedirectTo    string              `json:"redirectTo,omitempty"`
	Errors        map[string][]string `json:"errors,omitempty"`
}

type Controller struct {
	cfg       Config
	store     *store.Store
	validator *steps.Validator
	submitter gateway.Submitter
	drafts    DraftCanceller
	redirect  Redirector
	obs       *observability.Observability
	logger    logger.Logger

	mu            sync.Mutex
	state         State
	redirectTimer *time.Timer
	redirectTo    string
}

func NewController(
	cfg Config,
	st *store.Store,
	validator *steps.Validator,
	submitter gateway.Submitter,
	drafts DraftCanceller,
	redirect Redirector,
	obs *observability.Observability,
	log logger.Logger,
) *Controller {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if redirect == nil {
		redirect = func(string) {}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Controller{
		cfg:       cfg,
		store:     st,
		validator: validator,
		submitter: submitter,
		drafts:    drafts,
		redirect:  redirect,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "submission", "key": st.Key()}),
		state:     StateEditing,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RedirectTo is the confirmation URL once a redirect has been scheduled.
func (c *Controller) RedirectTo() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirectTo
}

// CanSubmit is the final-submit gate: every step complete and nothing in flight.
func (c *Controller) CanSubmit() bool {
	snap := c.store.Snapshot()
	return !snap.IsSubmitting && firstIncomplete(snap.StepCompletion, c.validator.Registry().Count()) < 0
}

func firstIncomplete(completion map[int]bool, count int) int {
	for i := 0; i < count; i++ {
		if !completion[i] {
			return i
		}
	}
	return -1
}

// Submit validates the whole draft and transmits it once. A second call while
// the first is in flight returns SUBMISSION_IN_FLIGHT without transmitting.
func (c *Controller) Submit(ctx context.Context, corr Correlation) (*Outcome, error) {
	snap := c.store.Snapshot()
	if step := firstIncomplete(snap.StepCompletion, c.validator.Registry().Count()); step >= 0 {
		metrics.Submissions.WithLabelValues("blocked").Inc()
		return nil, apperrors.NewStepIncompleteError(step)
	}
	if !c.store.TryBeginSubmit() {
		metrics.Submissions.WithLabelValues("duplicate").Inc()
		c.logger.Info("Ignoring submit while another is in flight", nil)
		return nil, apperrors.NewSubmissionInFlightError()
	}
	c.setState(StateSubmitting)

	// the request outlives a disconnecting caller; only the timeout bounds it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()
	ctx, span := c.obs.Tracer().Start(ctx, "form.submit")
	defer span.End()

	snap = c.store.Snapshot()
	all := c.validator.ValidateAll(snap.FormData)
	if !all.Valid {
		for _, res := range all.Steps {
			c.store.SetStepCompletion(res.Step, res.Valid)
		}
		c.store.SetErrors(all.Errors)
		if all.FirstInvalid >= 0 {
			c.store.SetCurrentStep(all.FirstInvalid)
		}
		c.store.SetIsSubmitting(false)
		c.setState(StateEditing)

		metrics.Submissions.WithLabelValues("invalid").Inc()
		span.SetStatus(codes.Error, "validation failed")
		c.logger.Warn("Final validation failed", map[string]interface{}{
			"firstInvalidStep": all.FirstInvalid,
			"errorCount":       len(all.Errors),
		})
		return &Outcome{State: StateEditing, Errors: all.Errors}, apperrors.NewValidationFailedError("one or more steps are incomplete")
	}

	req := gateway.SubmitRequest{
		Data:      snap.FormData,
		DraftID:   snap.DraftID,
		ProgramID: corr.ProgramID,
		CourseID:  corr.CourseID,
	}
	if req.ProgramID == "" {
		req.ProgramID = snap.FormData.String("programSelection.programId")
	}
	if req.CourseID == "" {
		req.CourseID = snap.FormData.String("programSelection.courseId")
	}
	span.SetAttributes(attribute.String("program.id", req.ProgramID), attribute.String("course.id", req.CourseID))

	start := time.Now()
	resp, err := c.submitter.Submit(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		return c.fail(ctx, span, apperrors.NewSubmissionNetworkError(err), elapsed)
	}
	if resp == nil || !resp.Success {
		msg := ""
		if resp != nil {
			msg = resp.Message
		}
		stdErr := apperrors.NewSubmissionRejectedError(msg)
		if resp != nil && resp.Code != "" {
			stdErr.WithMetadata("backendCode", resp.Code)
		}
		return c.fail(ctx, span, stdErr, elapsed)
	}

	metrics.Submissions.WithLabelValues("success").Inc()
	metrics.SubmissionDuration.WithLabelValues("success").Observe(elapsed.Seconds())
	c.obs.RecordSubmission(ctx, "success", elapsed)
	span.SetAttributes(attribute.String("application.id", resp.ApplicationID))

	if c.drafts != nil {
		c.drafts.Cancel()
	}
	c.store.ResetForm()
	c.scheduleRedirect()

	c.logger.Info("Application submitted", map[string]interface{}{
		"applicationId": resp.ApplicationID,
		"programId":     req.ProgramID,
		"durationMs":    elapsed.Milliseconds(),
	})
	return &Outcome{
		State:         StateSubmittedSuccess,
		ApplicationID: resp.ApplicationID,
		Message:       resp.Message,
		RedirectTo:    c.cfg.ConfirmationURL,
	}, nil
}

func (c *Controller) fail(ctx context.Context, span trace.Span, stdErr *apperrors.StandardError, elapsed time.Duration) (*Outcome, error) {
	c.store.SetSubmitError(stdErr.Message)
	c.store.SetIsSubmitting(false)
	c.setState(StateEditing)

	outcome := "rejected"
	if stdErr.Code == apperrors.ErrCodeSubmissionNetwork {
		outcome = "network_error"
	}
	metrics.Submissions.WithLabelValues(outcome).Inc()
	metrics.SubmissionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	c.obs.RecordSubmission(ctx, outcome, elapsed)
	span.RecordError(stdErr)
	span.SetStatus(codes.Error, string(stdErr.Code))

	c.logger.Warn("Submission failed", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
	return &Outcome{State: StateEditing, Message: stdErr.Message}, stdErr
}

func (c *Controller) scheduleRedirect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateSubmittedSuccess
	c.redirectTo = c.cfg.ConfirmationURL
	if c.redirectTimer != nil {
		c.redirectTimer.Stop()
	}
	url := c.cfg.ConfirmationURL
	c.redirectTimer = time.AfterFunc(c.cfg.RedirectDelay, func() { c.redirect(url) })
}

// Restart returns a finished controller to editing for a fresh application.
func (c *Controller) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redirectTimer != nil {
		c.redirectTimer.Stop()
	}
	c.state = StateEditing
	c.redirectTo = ""
}

// Close cancels a pending redirect.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redirectTimer != nil {
		c.redirectTimer.Stop()
	}
}
