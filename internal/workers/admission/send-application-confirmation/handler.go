// internal/workers/admission/send-application-confirmation/handler.go
package sendapplicationconfirmation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/form/formdata"
	sendconfirmation "admissions-portal/internal/services/applications/send-confirmation"
	"admissions-portal/internal/workers/jobs"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-application-confirmation"
)

var (
	ErrInvalidInput           = errors.New("INVALID_INPUT")
	ErrApplicationNotFound    = errors.New("APPLICATION_NOT_FOUND")
	ErrDatabaseQueryFailed    = errors.New("DATABASE_QUERY_FAILED")
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

type Notifier interface {
	Execute(ctx context.Context, input *sendconfirmation.Input) (*sendconfirmation.Output, error)
}

type ProgramCatalog interface {
	ProgramTitle(ctx context.Context, programID string) (string, error)
}

type Handler struct {
	config   *Config
	db       *sql.DB
	notifier Notifier
	catalog  ProgramCatalog
	logger   logger.Logger
}

// NewHandler builds the worker; catalog may be nil, in which case messages
// fall back to the program id.
func NewHandler(config *Config, db *sql.DB, notifier Notifier, catalog ProgramCatalog, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		db:       db,
		notifier: notifier,
		catalog:  catalog,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput.Error(), false
	case errors.Is(err, ErrApplicationNotFound):
		return ErrApplicationNotFound.Error(), false
	case errors.Is(err, ErrDatabaseQueryFailed):
		return ErrDatabaseQueryFailed.Error(), true
	default:
		return ErrNotificationSendFailed.Error(), true
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if _, err := uuid.Parse(input.ApplicationID); err != nil {
		return nil, fmt.Errorf("%w: applicationId %q", ErrInvalidInput, input.ApplicationID)
	}

	msg, err := h.loadRecipient(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	if h.catalog != nil && msg.ProgramID != "" {
		title, err := h.catalog.ProgramTitle(ctx, msg.ProgramID)
		if err != nil {
			h.logger.Debug("program title lookup failed", map[string]interface{}{
				"error":     err,
				"programId": msg.ProgramID,
			})
		}
		msg.ProgramTitle = title
	}

	out, err := h.notifier.Execute(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
	}
	if out.EmailStatus == sendconfirmation.StatusFailed && out.SMSStatus != sendconfirmation.StatusSent {
		return nil, fmt.Errorf("%w: no channel delivered", ErrNotificationSendFailed)
	}

	h.logger.Info("confirmation sent", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"emailStatus":   out.EmailStatus,
		"smsStatus":     out.SMSStatus,
	})

	return &Output{
		ApplicationID:  input.ApplicationID,
		NotificationID: out.NotificationID,
		EmailStatus:    out.EmailStatus,
		SMSStatus:      out.SMSStatus,
		SentAt:         out.SentAt,
	}, nil
}

func (h *Handler) loadRecipient(ctx context.Context, applicationID string) (*sendconfirmation.Input, error) {
	var (
		email, programID string
		raw              []byte
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT email, program_id, application_data FROM applications WHERE id = $1`,
		applicationID,
	).Scan(&email, &programID, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQueryFailed, err)
	}

	var data formdata.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		h.logger.Warn("stored application data unreadable", map[string]interface{}{
			"error":         err,
			"applicationId": applicationID,
		})
		data = formdata.Data{}
	}

	return &sendconfirmation.Input{
		ApplicationID: applicationID,
		Email:         email,
		Phone:         data.String("personalInfo.phone"),
		FirstName:     data.String("personalInfo.firstName"),
		ProgramID:     programID,
	}, nil
}
