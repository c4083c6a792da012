// internal/services/catalog/search-programs/service.go
package searchprograms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
)

const ServiceName = "search-programs"

var ErrProgramNotFound = errors.New("PROGRAM_NOT_FOUND")

type Service struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewService(config *Config, client *elasticsearch.Client, log logger.Logger) *Service {
	if config == nil {
		config = LoadConfig()
	}
	return &Service{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"service": ServiceName}),
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		input = &Input{}
	}
	size := input.Size
	if size <= 0 {
		size = s.config.DefaultSize
	}
	if size > s.config.MaxSize {
		size = s.config.MaxSize
	}
	from := input.From
	if from < 0 {
		from = 0
	}

	body, err := json.Marshal(BuildQuery(input))
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.config.Index),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithFrom(from),
		s.client.Search.WithSize(size),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(s.config.Index)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, fmt.Errorf("status %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, fmt.Errorf("decode response: %w", err))
	}

	out := &Output{
		Programs:  make([]Program, 0, len(parsed.Hits.Hits)),
		TotalHits: parsed.Hits.Total.Value,
		Took:      parsed.Took,
	}
	for _, hit := range parsed.Hits.Hits {
		p := hit.Source
		if p.ID == "" {
			p.ID = hit.ID
		}
		out.Programs = append(out.Programs, p)
	}

	s.logger.Debug("program search", map[string]interface{}{
		"query":    input.Query,
		"category": input.Category,
		"hits":     out.TotalHits,
	})
	return out, nil
}

// Get fetches one program by id.
func (s *Service) Get(ctx context.Context, programID string) (*Program, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	res, err := s.client.Get(s.config.Index, programID, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, fmt.Errorf("status %s", res.Status()))
	}

	var parsed getResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(s.config.Index, fmt.Errorf("decode response: %w", err))
	}
	if !parsed.Found {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	p := parsed.Source
	if p.ID == "" {
		p.ID = parsed.ID
	}
	return &p, nil
}

// ProgramTitle resolves a display name for a program id.
func (s *Service) ProgramTitle(ctx context.Context, programID string) (string, error) {
	p, err := s.Get(ctx, programID)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
