package gateway

import (
	"context"
	"errors"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/form/formdata"
	savedraft "admissions-portal/internal/services/applications/save-draft"
	submitapplication "admissions-portal/internal/services/applications/submit-application"
)

type DraftService interface {
	Execute(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error)
	Load(ctx context.Context, draftID string) (*savedraft.Draft, error)
}

type ApplicationService interface {
	Execute(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error)
}

// LocalGateway calls the backend services in-process.
type LocalGateway struct {
	drafts       DraftService
	applications ApplicationService
}

func NewLocalGateway(drafts DraftService, applications ApplicationService) *LocalGateway {
	return &LocalGateway{drafts: drafts, applications: applications}
}

func (g *LocalGateway) SaveDraft(ctx context.Context, req DraftRequest) (*DraftResponse, error) {
	out, err := g.drafts.Execute(ctx, &savedraft.Input{DraftID: req.DraftID, Data: req.Data})
	if err != nil {
		return nil, err
	}
	return &DraftResponse{Success: true, DraftID: out.DraftID}, nil
}

func (g *LocalGateway) LoadDraft(ctx context.Context, draftID string) (*Draft, error) {
	draft, err := g.drafts.Load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return &Draft{DraftID: draft.DraftID, Data: formdata.Data(draft.Data), UpdatedAt: draft.UpdatedAt}, nil
}

// Submit turns service errors into rejections, as the HTTP endpoint would.
func (g *LocalGateway) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	out, err := g.applications.Execute(ctx, &submitapplication.Input{
		Data:      req.Data,
		DraftID:   req.DraftID,
		ProgramID: req.ProgramID,
		CourseID:  req.CourseID,
	})
	if err != nil {
		var std *apperrors.StandardError
		if errors.As(err, &std) {
			return &SubmitResponse{Success: false, Message: std.Message, Code: string(std.Code)}, nil
		}
		return nil, err
	}
	return &SubmitResponse{
		Success:       true,
		Message:       "Application submitted successfully",
		ApplicationID: out.ApplicationID,
	}, nil
}
