// internal/workers/admission/update-application-status/handler.go
package updateapplicationstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/workers/jobs"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "update-application-status"
)

var (
	ErrInvalidInput        = errors.New("INVALID_INPUT")
	ErrApplicationNotFound = errors.New("APPLICATION_NOT_FOUND")
	ErrInvalidTransition   = errors.New("INVALID_STATUS_TRANSITION")
	ErrDatabaseQueryFailed = errors.New("DATABASE_QUERY_FAILED")
)

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		jobs.Fail(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), false, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		code, retryable := classify(err)
		jobs.Fail(client, job, code, err.Error(), retryable, h.logger)
		return
	}

	jobs.Complete(client, job, output, h.logger)
}

func classify(err error) (string, bool) {
	for _, known := range []error{ErrInvalidInput, ErrApplicationNotFound, ErrInvalidTransition} {
		if errors.Is(err, known) {
			return known.Error(), false
		}
	}
	return ErrDatabaseQueryFailed.Error(), true
}

func validateInput(input *Input) error {
	if _, err := uuid.Parse(input.ApplicationID); err != nil {
		return fmt.Errorf("%w: applicationId %q", ErrInvalidInput, input.ApplicationID)
	}
	switch input.Status {
	case StatusUnderReview, StatusAccepted, StatusRejected, StatusWaitlisted, StatusWithdrawn:
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
	}
}

// Execute moves the application to the requested status and records the change
// in the audit log within one transaction. Repeating the current status is a no-op
// so redelivered jobs complete cleanly.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrDatabaseQueryFailed, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM applications WHERE id = $1 FOR UPDATE`,
		input.ApplicationID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, input.ApplicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQueryFailed, err)
	}

	now := h.now().UTC()
	output := &Output{
		ApplicationID:     input.ApplicationID,
		PreviousStatus:    current,
		ApplicationStatus: input.Status,
		UpdatedAt:         now.Format(time.RFC3339),
	}

	if current == input.Status {
		h.logger.Info("status unchanged", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"status":        current,
		})
		return output, nil
	}
	if !slices.Contains(transitions[current], input.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, input.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
		input.Status, now, input.ApplicationID,
	); err != nil {
		return nil, fmt.Errorf("%w: update: %v", ErrDatabaseQueryFailed, err)
	}

	actor := input.Actor
	if actor == "" {
		actor = h.config.Actor
	}
	details, _ := json.Marshal(map[string]interface{}{
		"from":   current,
		"to":     input.Status,
		"reason": input.Reason,
	})
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), "application", input.ApplicationID, "status_changed", actor, details, now,
	); err != nil {
		return nil, fmt.Errorf("%w: audit: %v", ErrDatabaseQueryFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrDatabaseQueryFailed, err)
	}

	h.logger.Info("application status updated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"from":          current,
		"to":            input.Status,
	})
	return output, nil
}
