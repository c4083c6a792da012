package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeStepIncomplete       ErrorCode = "STEP_INCOMPLETE"
	ErrCodeInvalidStep          ErrorCode = "INVALID_STEP"
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSubmissionInFlight   ErrorCode = "SUBMISSION_IN_FLIGHT"
	ErrCodeSubmissionNetwork    ErrorCode = "SUBMISSION_NETWORK_FAILED"
	ErrCodeSubmissionRejected   ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeQuotaExceeded        ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeDraftSaveFailed      ErrorCode = "DRAFT_SAVE_FAILED"
	ErrCodeDraftNotFound        ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodeSnapshotCorrupt      ErrorCode = "SNAPSHOT_CORRUPT"
	ErrCodeProgramNotFound      ErrorCode = "PROGRAM_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexNotFound            ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeProcessStartFailed       ErrorCode = "PROCESS_START_FAILED"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Application data validation failed", details, false)
}

func NewStepIncompleteError(step int) *StandardError {
	return newError(ErrCodeStepIncomplete, "Please complete this step before continuing",
		fmt.Sprintf("step: %d", step), false)
}

func NewInvalidStepError(step int) *StandardError {
	return newError(ErrCodeInvalidStep, "Requested step is not available", fmt.Sprintf("step: %d", step), false)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Form session not found", fmt.Sprintf("sessionId: %s", sessionID), false)
}

func NewSubmissionInFlightError() *StandardError {
	return newError(ErrCodeSubmissionInFlight, "A submission is already in progress", "", false)
}

func NewSubmissionNetworkError(err error) *StandardError {
	return newError(ErrCodeSubmissionNetwork,
		"We could not reach the admissions service. Please check your connection and try again.",
		err.Error(), true)
}

// NewSubmissionRejectedError carries the server's own message when it gave one.
func NewSubmissionRejectedError(message string) *StandardError {
	if message == "" {
		message = "Your application could not be submitted. Please review your details and try again."
	}
	return newError(ErrCodeSubmissionRejected, message, "", false)
}

func NewDuplicateApplicationError(email, programID string) *StandardError {
	return newError(ErrCodeDuplicateApplication,
		"An application for this program has already been submitted with this email address",
		fmt.Sprintf("email: %s, programId: %s", email, programID), false)
}

func NewQuotaExceededError(limit int) *StandardError {
	return newError(ErrCodeQuotaExceeded, "Too many submissions today. Please try again tomorrow.",
		fmt.Sprintf("dailyLimit: %d", limit), false)
}

func NewDraftSaveFailedError(err error) *StandardError {
	return newError(ErrCodeDraftSaveFailed, "Draft save failed", err.Error(), true)
}

func NewDraftNotFoundError(draftID string) *StandardError {
	return newError(ErrCodeDraftNotFound, "Draft not found", fmt.Sprintf("draftId: %s", draftID), false)
}

func NewProgramNotFoundError(programID string) *StandardError {
	return newError(ErrCodeProgramNotFound, "Program not found", fmt.Sprintf("programId: %s", programID), false)
}

func NewSnapshotCorruptError(key string, err error) *StandardError {
	return newError(ErrCodeSnapshotCorrupt, "Stored form snapshot could not be read",
		fmt.Sprintf("key: %s, error: %s", key, err.Error()), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("indexName: %s", indexName), false)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

func NewProcessStartFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeProcessStartFailed, "Admission process could not be started",
		fmt.Sprintf("processId: %s, error: %s", processID, err.Error()), true)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

// AsStandard unwraps err to a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidRequest:
		return http.StatusUnprocessableEntity
	case ErrCodeStepIncomplete, ErrCodeInvalidStep:
		return http.StatusBadRequest
	case ErrCodeSessionNotFound, ErrCodeDraftNotFound, ErrCodeIndexNotFound, ErrCodeProgramNotFound:
		return http.StatusNotFound
	case ErrCodeSubmissionInFlight, ErrCodeDuplicateApplication:
		return http.StatusConflict
	case ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrCodeSubmissionNetwork, ErrCodeExternalService:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeSubmissionRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeProcessStartFailed,
		ErrCodeExternalService:
		return 3
	case ErrCodeTimeout, ErrCodeDraftSaveFailed:
		return 2
	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SUBMISSION") || code == ErrCodeDuplicateApplication || code == ErrCodeQuotaExceeded:
		return "SUBMISSION"
	case strings.Contains(codeStr, "DRAFT") || strings.Contains(codeStr, "SNAPSHOT"):
		return "DRAFT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY_EXECUTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "STEP"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
