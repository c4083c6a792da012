// internal/services/applications/save-draft/service.go
package savedraft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"

	"github.com/google/uuid"
)

const ServiceName = "save-draft"

type Service struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewService(config *Config, db *sql.DB, log logger.Logger) *Service {
	if config == nil {
		config = LoadConfig()
	}
	return &Service{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"service": ServiceName}),
	}
}

// Execute creates a draft when DraftID is empty and updates it in place otherwise.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Data == nil {
		return nil, apperrors.NewInvalidRequestError("draft data is required")
	}

	created := input.DraftID == ""
	draftID := input.DraftID
	if created {
		draftID = uuid.New().String()
	} else if _, err := uuid.Parse(draftID); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid draftId: %s", draftID))
	}

	payload, err := json.Marshal(input.Data)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("marshal draft data: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO application_drafts (id, application_data, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET application_data = EXCLUDED.application_data, updated_at = EXCLUDED.updated_at`,
		draftID, payload, now,
	)
	if err != nil {
		s.logger.Error("draft upsert failed", map[string]interface{}{
			"error":   err,
			"draftId": draftID,
		})
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("draft saved", map[string]interface{}{
		"draftId": draftID,
		"created": created,
	})

	return &Output{
		DraftID:   draftID,
		Created:   created,
		UpdatedAt: now.Format(time.RFC3339),
	}, nil
}

// Load returns a stored draft so an applicant can resume on another device.
func (s *Service) Load(ctx context.Context, draftID string) (*Draft, error) {
	if _, err := uuid.Parse(draftID); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid draftId: %s", draftID))
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var raw []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT application_data, updated_at FROM application_drafts WHERE id = $1`, draftID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDraftNotFoundError(draftID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("draft_lookup", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("draft_decode", err)
	}
	return &Draft{DraftID: draftID, Data: data, UpdatedAt: updatedAt.UTC().Format(time.RFC3339)}, nil
}
