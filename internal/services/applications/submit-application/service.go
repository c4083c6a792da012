// internal/services/applications/submit-application/service.go
package submitapplication

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"admissions-portal/internal/common/database"
	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/form/steps"
	sendconfirmation "admissions-portal/internal/services/applications/send-confirmation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ServiceName    = "submit-application"
	quotaKeyPrefix = "submission-quota"
)

// ProcessStarter starts the admission workflow for a stored application.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

type Notifier interface {
	Execute(ctx context.Context, input *sendconfirmation.Input) (*sendconfirmation.Output, error)
}

// ProgramCatalog resolves display titles for confirmation messages.
type ProgramCatalog interface {
	ProgramTitle(ctx context.Context, programID string) (string, error)
}

type ServiceDependencies struct {
	DB        *sql.DB
	Redis     *redis.Client
	Validator *steps.Validator
	Process   ProcessStarter
	Notifier  Notifier
	Catalog   ProgramCatalog
	Logger    logger.Logger
}

type Service struct {
	config    *Config
	db        *sql.DB
	redis     *redis.Client
	validator *steps.Validator
	process   ProcessStarter
	notifier  Notifier
	catalog   ProgramCatalog
	logger    logger.Logger
	now       func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	if config == nil {
		config = LoadConfig()
	}
	return &Service{
		config:    config,
		db:        deps.DB,
		redis:     deps.Redis,
		validator: deps.Validator,
		process:   deps.Process,
		notifier:  deps.Notifier,
		catalog:   deps.Catalog,
		logger:    deps.Logger.WithFields(map[string]interface{}{"service": ServiceName}),
		now:       time.Now,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Data == nil {
		return nil, apperrors.NewInvalidRequestError("application data is required")
	}

	all := s.validator.ValidateAll(input.Data)
	if !all.Valid {
		metrics.ApplicationsStored.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("%d field(s) failed validation", len(all.Errors))).
			WithMetadata("errors", all.Errors).
			WithMetadata("firstInvalidStep", all.FirstInvalid)
	}

	email := strings.ToLower(input.Data.String("personalInfo.email"))
	programID := input.ProgramID
	if programID == "" {
		programID = input.Data.String("programSelection.programId")
	}
	courseID := input.CourseID
	if courseID == "" {
		courseID = input.Data.String("programSelection.courseId")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM applications
			WHERE lower(email) = $1 AND program_id = $2
		)`, email, programID).Scan(&exists)
	if err != nil {
		metrics.ApplicationsStored.WithLabelValues("error").Inc()
		return nil, apperrors.NewQueryExecutionFailedError("duplicate_check", err)
	}
	if exists {
		metrics.ApplicationsStored.WithLabelValues("duplicate").Inc()
		return nil, apperrors.NewDuplicateApplicationError(email, programID)
	}

	if err := s.checkQuota(ctx, email); err != nil {
		metrics.ApplicationsStored.WithLabelValues("quota").Inc()
		return nil, err
	}

	appID := uuid.New().String()
	createdAt := s.now().UTC()

	applicationJSON, err := json.Marshal(input.Data)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("marshal application data: %v", err))
	}

	draftID := sql.NullString{}
	if _, perr := uuid.Parse(input.DraftID); perr == nil {
		draftID = sql.NullString{String: input.DraftID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, draft_id, email, program_id, course_id,
			application_data, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		appID, draftID, email, programID, courseID, applicationJSON, StatusSubmitted, createdAt,
	)
	if database.IsUniqueViolation(err) {
		metrics.ApplicationsStored.WithLabelValues("duplicate").Inc()
		return nil, apperrors.NewDuplicateApplicationError(email, programID)
	}
	if err != nil {
		metrics.ApplicationsStored.WithLabelValues("error").Inc()
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	metrics.ApplicationsStored.WithLabelValues("stored").Inc()

	if draftID.Valid {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM application_drafts WHERE id = $1`, draftID.String); err != nil {
			s.logger.Warn("draft cleanup failed", map[string]interface{}{
				"error":   err,
				"draftId": draftID.String,
			})
		}
	}

	s.writeAudit(ctx, appID, programID, courseID, draftID.String, createdAt)

	out := &Output{
		ApplicationID:     appID,
		ApplicationStatus: StatusSubmitted,
		CreatedAt:         createdAt.Format(time.RFC3339),
	}
	out.ProcessInstanceKey = s.startProcess(ctx, appID, email, programID, courseID)
	out.Notification = s.notify(ctx, input, appID, programID)

	s.logger.Info("application stored", map[string]interface{}{
		"applicationId": appID,
		"programId":     programID,
		"courseId":      courseID,
	})
	return out, nil
}

// checkQuota counts submissions per email per UTC day. Redis failures allow the submission.
func (s *Service) checkQuota(ctx context.Context, email string) error {
	if s.config.DailyQuota <= 0 || s.redis == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%s:%s", quotaKeyPrefix, s.now().UTC().Format("20060102"), email)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn("quota check unavailable", map[string]interface{}{"error": err})
		return nil
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			s.logger.Warn("quota expiry not set", map[string]interface{}{"error": err, "key": key})
		}
	}
	if count > int64(s.config.DailyQuota) {
		return apperrors.NewQuotaExceededError(s.config.DailyQuota)
	}
	return nil
}

func (s *Service) writeAudit(ctx context.Context, appID, programID, courseID, draftID string, at time.Time) {
	details, err := json.Marshal(map[string]interface{}{
		"programId": programID,
		"courseId":  courseID,
		"draftId":   draftID,
	})
	if err != nil {
		details = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), "application", appID, "application_submitted", "applicant", details, at,
	)
	if err != nil {
		s.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": appID,
		})
	}
}

func (s *Service) startProcess(ctx context.Context, appID, email, programID, courseID string) int64 {
	if !s.config.StartProcess || s.process == nil {
		return 0
	}
	key, err := s.process.StartProcess(ctx, s.config.ProcessID, map[string]interface{}{
		"applicationId": appID,
		"email":         email,
		"programId":     programID,
		"courseId":      courseID,
	})
	if err != nil {
		s.logger.Warn("admission process not started", map[string]interface{}{
			"error":         err,
			"applicationId": appID,
			"processId":     s.config.ProcessID,
		})
		return 0
	}
	return key
}

func (s *Service) notify(ctx context.Context, input *Input, appID, programID string) string {
	if !s.config.SendConfirmation || s.notifier == nil {
		return sendconfirmation.StatusDisabled
	}

	title := ""
	if s.catalog != nil && programID != "" {
		t, err := s.catalog.ProgramTitle(ctx, programID)
		if err != nil {
			s.logger.Debug("program title lookup failed", map[string]interface{}{"error": err, "programId": programID})
		}
		title = t
	}

	out, err := s.notifier.Execute(ctx, &sendconfirmation.Input{
		ApplicationID: appID,
		Email:         input.Data.String("personalInfo.email"),
		Phone:         input.Data.String("personalInfo.phone"),
		FirstName:     input.Data.String("personalInfo.firstName"),
		ProgramID:     programID,
		ProgramTitle:  title,
	})
	if err != nil {
		s.logger.Warn("confirmation not sent", map[string]interface{}{"error": err, "applicationId": appID})
		return sendconfirmation.StatusFailed
	}
	return out.EmailStatus
}
