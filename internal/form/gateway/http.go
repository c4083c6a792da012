package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/http"
	"admissions-portal/internal/form/formdata"
)

const (
	DraftsPath       = "/api/v1/drafts"
	ApplicationsPath = "/api/v1/applications"
)

// HTTPGateway talks to a remote admissions API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.NewClient(timeout),
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SaveDraft returns an error for any non-2xx status.
func (g *HTTPGateway) SaveDraft(ctx context.Context, req DraftRequest) (*DraftResponse, error) {
	resp, err := g.client.PostJSON(ctx, g.baseURL+DraftsPath, req)
	if err != nil {
		return nil, fmt.Errorf("post draft: %w", err)
	}
	if !resp.OK() {
		var body errorBody
		_ = json.Unmarshal(resp.Body, &body)
		return nil, fmt.Errorf("draft endpoint returned %d: %s", resp.StatusCode, body.Error.Message)
	}

	var out DraftResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode draft response: %w", err)
	}
	return &out, nil
}

// LoadDraft maps a 404 to DRAFT_NOT_FOUND; any other non-2xx status is an error.
func (g *HTTPGateway) LoadDraft(ctx context.Context, draftID string) (*Draft, error) {
	resp, err := g.client.GetJSON(ctx, g.baseURL+DraftsPath+"/"+url.PathEscape(draftID))
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if resp.StatusCode == nethttp.StatusNotFound {
		return nil, apperrors.NewDraftNotFoundError(draftID)
	}
	if !resp.OK() {
		var body errorBody
		_ = json.Unmarshal(resp.Body, &body)
		return nil, fmt.Errorf("draft endpoint returned %d: %s", resp.StatusCode, body.Error.Message)
	}

	var out Draft
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if out.Data == nil {
		out.Data = formdata.Data{}
	}
	return &out, nil
}

// Submit reports a non-2xx status as an unsuccessful response carrying the
// server's message; only transport failures are returned as errors.
func (g *HTTPGateway) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	resp, err := g.client.PostJSON(ctx, g.baseURL+ApplicationsPath, req)
	if err != nil {
		return nil, fmt.Errorf("post application: %w", err)
	}
	if !resp.OK() {
		var body errorBody
		_ = json.Unmarshal(resp.Body, &body)
		return &SubmitResponse{Success: false, Message: body.Error.Message, Code: body.Error.Code}, nil
	}

	var out SubmitResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	return &out, nil
}
