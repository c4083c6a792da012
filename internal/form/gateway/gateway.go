// Package gateway carries drafts and submissions from a wizard session to the
// admissions backend, over HTTP or in-process.
package gateway

import (
	"context"

	"admissions-portal/internal/form/formdata"
)

type DraftRequest struct {
	DraftID string        `json:"draftId,omitempty"`
	Data    formdata.Data `json:"data"`
}

type DraftResponse struct {
	Success bool   `json:"success"`
	DraftID string `json:"draftId"`
	Message string `json:"message,omitempty"`
}

// Draft is a server-side draft fetched to resume an application.
type Draft struct {
	DraftID   string        `json:"draftId"`
	Data      formdata.Data `json:"data"`
	UpdatedAt string        `json:"updatedAt,omitempty"`
}

type SubmitRequest struct {
	Data      formdata.Data `json:"data"`
	DraftID   string        `json:"draftId,omitempty"`
	ProgramID string        `json:"programId,omitempty"`
	CourseID  string        `json:"courseId,omitempty"`
}

type SubmitResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ApplicationID string `json:"applicationId,omitempty"`
	Code          string `json:"code,omitempty"`
}

type DraftSaver interface {
	SaveDraft(ctx context.Context, req DraftRequest) (*DraftResponse, error)
}

// DraftLoader fetches a saved draft. An unknown id is a DRAFT_NOT_FOUND error.
type DraftLoader interface {
	LoadDraft(ctx context.Context, draftID string) (*Draft, error)
}

type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
}

// Backend is both endpoints together.
type Backend interface {
	DraftSaver
	Submitter
}
