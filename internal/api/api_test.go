package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/form/drafts"
	"admissions-portal/internal/form/formdata"
	"admissions-portal/internal/form/formtest"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/schema"
	"admissions-portal/internal/form/session"
	"admissions-portal/internal/form/steps"
	"admissions-portal/internal/form/store"
	"admissions-portal/internal/form/submission"
	savedraft "admissions-portal/internal/services/applications/save-draft"
	submitapplication "admissions-portal/internal/services/applications/submit-application"
	searchprograms "admissions-portal/internal/services/catalog/search-programs"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockDraftStore struct {
	ExecuteFunc func(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error)
	LoadFunc    func(ctx context.Context, draftID string) (*savedraft.Draft, error)
}

func (m *MockDraftStore) Execute(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error) {
	return m.ExecuteFunc(ctx, input)
}

func (m *MockDraftStore) Load(ctx context.Context, draftID string) (*savedraft.Draft, error) {
	return m.LoadFunc(ctx, draftID)
}

type MockApplicationStore struct {
	ExecuteFunc func(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error)
}

func (m *MockApplicationStore) Execute(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error) {
	return m.ExecuteFunc(ctx, input)
}

type MockProgramCatalog struct {
	ExecuteFunc func(ctx context.Context, input *searchprograms.Input) (*searchprograms.Output, error)
	GetFunc     func(ctx context.Context, programID string) (*searchprograms.Program, error)
}

func (m *MockProgramCatalog) Execute(ctx context.Context, input *searchprograms.Input) (*searchprograms.Output, error) {
	return m.ExecuteFunc(ctx, input)
}

func (m *MockProgramCatalog) Get(ctx context.Context, programID string) (*searchprograms.Program, error) {
	return m.GetFunc(ctx, programID)
}

type fakeBackend struct {
	mu      sync.Mutex
	submits []gateway.SubmitRequest
}

func (f *fakeBackend) SaveDraft(ctx context.Context, req gateway.DraftRequest) (*gateway.DraftResponse, error) {
	return &gateway.DraftResponse{Success: true, DraftID: "draft-1"}, nil
}

func (f *fakeBackend) Submit(ctx context.Context, req gateway.SubmitRequest) (*gateway.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	return &gateway.SubmitResponse{Success: true, ApplicationID: "app-42"}, nil
}

func (f *fakeBackend) LoadDraft(ctx context.Context, draftID string) (*gateway.Draft, error) {
	if draftID != "draft-7" {
		return nil, apperrors.NewDraftNotFoundError(draftID)
	}
	return &gateway.Draft{DraftID: draftID, Data: formdata.Data{formdata.PersonalInfo: formtest.PersonalInfo()}}, nil
}

func (f *fakeBackend) Submits() []gateway.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.SubmitRequest(nil), f.submits...)
}

// ==========================
// Test Helper Functions
// ==========================

func newSessionManager(t *testing.T, backend gateway.Backend) *session.Manager {
	t.Helper()
	m := session.NewManager(session.Config{
		Drafts: drafts.Config{
			Debounce:    time.Hour,
			AckDuration: 10 * time.Millisecond,
			MaxRetries:  1,
			SaveTimeout: time.Second,
		},
		Submission: submission.Config{
			RedirectDelay:   time.Hour,
			ConfirmationURL: "/apply/confirmation",
			Timeout:         time.Second,
		},
	}, session.Dependencies{
		Validator: steps.NewValidator(steps.DefaultRegistry(), schema.ApplicantSchema()),
		Mirror:    store.NewMemoryMirror(),
		Backend:   backend,
		Logger:    logger.NewTestLogger(t),
	})
	t.Cleanup(m.Close)
	return m
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	return errBody["code"].(string)
}

func sessionView(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	view, ok := decode(t, rec)["session"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	return view
}

// ==========================
// Drafts
// ==========================

func TestHandleSaveDraft(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		execute    func(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "new draft",
			body: map[string]interface{}{"data": map[string]interface{}{"personalInfo": map[string]interface{}{"surname": "Doe"}}},
			execute: func(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error) {
				assert.Equal(t, "Doe", input.Data["personalInfo"].(map[string]interface{})["surname"])
				return &savedraft.Output{DraftID: "d-1", Created: true, UpdatedAt: "2025-06-02T10:00:00Z"}, nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "existing draft",
			body: map[string]interface{}{"draftId": "d-1", "data": map[string]interface{}{}},
			execute: func(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error) {
				assert.Equal(t, "d-1", input.DraftID)
				return &savedraft.Output{DraftID: "d-1", UpdatedAt: "2025-06-02T10:00:00Z"}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing data",
			body:       map[string]interface{}{"draftId": "d-1"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "unknown section",
			body:       map[string]interface{}{"data": map[string]interface{}{"payment": map[string]interface{}{}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "not json",
			body:       "{oops",
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name: "database failure",
			body: map[string]interface{}{"data": map[string]interface{}{}},
			execute: func(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error) {
				return nil, apperrors.NewDatabaseInsertFailedError(errors.New("connection reset"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "DATABASE_INSERT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockDraftStore{ExecuteFunc: tt.execute}
			if store.ExecuteFunc == nil {
				store.ExecuteFunc = func(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error) {
					t.Fatal("service must not be called")
					return nil, nil
				}
			}
			srv := NewServer(Dependencies{Drafts: store, Logger: logger.NewTestLogger(t)})

			rec := do(t, srv.Router(), http.MethodPost, "/api/v1/drafts", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
			} else {
				assert.Equal(t, "d-1", decode(t, rec)["draftId"])
			}
		})
	}
}

func TestHandleGetDraft(t *testing.T) {
	store := &MockDraftStore{LoadFunc: func(ctx context.Context, draftID string) (*savedraft.Draft, error) {
		if draftID == "known" {
			return &savedraft.Draft{DraftID: draftID, Data: map[string]interface{}{"referee": map[string]interface{}{}}}, nil
		}
		return nil, apperrors.NewDraftNotFoundError(draftID)
	}}
	srv := NewServer(Dependencies{Drafts: store, Logger: logger.NewTestLogger(t)})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/known", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "known"})
	rec := httptest.NewRecorder()
	srv.HandleGetDraft(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "known", decode(t, rec)["draftId"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/drafts/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	rec = httptest.NewRecorder()
	srv.HandleGetDraft(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DRAFT_NOT_FOUND", errorCode(t, rec))
}

// ==========================
// Applications
// ==========================

func TestHandleSubmitApplication(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		apps := &MockApplicationStore{ExecuteFunc: func(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error) {
			assert.Equal(t, "prog-1", input.ProgramID)
			assert.Equal(t, "john.doe@example.com", input.Data.String("personalInfo.email"))
			return &submitapplication.Output{ApplicationID: "app-1", ApplicationStatus: submitapplication.StatusSubmitted, CreatedAt: "2025-06-02T10:00:00Z"}, nil
		}}
		srv := NewServer(Dependencies{Applications: apps, Logger: logger.NewTestLogger(t)})

		rec := do(t, srv.Router(), http.MethodPost, "/api/v1/applications", map[string]interface{}{
			"programId": "prog-1",
			"data":      formtest.ValidDraft(),
		})

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "app-1", body["applicationId"])
		assert.Equal(t, "Application submitted successfully", body["message"])
	})

	t.Run("service rejections keep their status", func(t *testing.T) {
		tests := map[string]struct {
			err        error
			wantStatus int
		}{
			"VALIDATION_FAILED":     {apperrors.NewValidationFailedError("personalInfo.email: Invalid email address"), http.StatusUnprocessableEntity},
			"DUPLICATE_APPLICATION": {apperrors.NewDuplicateApplicationError("john.doe@example.com", "prog-1"), http.StatusConflict},
			"QUOTA_EXCEEDED":        {apperrors.NewQuotaExceededError(3), http.StatusTooManyRequests},
		}
		for code, tt := range tests {
			apps := &MockApplicationStore{ExecuteFunc: func(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error) {
				return nil, tt.err
			}}
			srv := NewServer(Dependencies{Applications: apps, Logger: logger.NewTestLogger(t)})

			rec := do(t, srv.Router(), http.MethodPost, "/api/v1/applications", map[string]interface{}{"data": formtest.ValidDraft()})

			assert.Equal(t, tt.wantStatus, rec.Code, code)
			assert.Equal(t, code, errorCode(t, rec))
		}
	})

	t.Run("rejection round-trips through the HTTP gateway", func(t *testing.T) {
		apps := &MockApplicationStore{ExecuteFunc: func(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error) {
			return nil, apperrors.NewDuplicateApplicationError("john.doe@example.com", "prog-1")
		}}
		ts := httptest.NewServer(NewServer(Dependencies{Applications: apps, Logger: logger.NewTestLogger(t)}).Handler())
		defer ts.Close()

		resp, err := gateway.NewHTTPGateway(ts.URL, time.Second).Submit(context.Background(), gateway.SubmitRequest{Data: formtest.ValidDraft()})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "DUPLICATE_APPLICATION", resp.Code)
		assert.NotEmpty(t, resp.Message)
	})
}

// ==========================
// Programs
// ==========================

func TestHandleSearchPrograms(t *testing.T) {
	catalog := &MockProgramCatalog{ExecuteFunc: func(ctx context.Context, input *searchprograms.Input) (*searchprograms.Output, error) {
		assert.Equal(t, "nursing", input.Query)
		assert.Equal(t, "health", input.Category)
		assert.Equal(t, 10, input.From)
		assert.Equal(t, 5, input.Size)
		return &searchprograms.Output{Programs: []searchprograms.Program{{ID: "prog-1", Name: "BSc Nursing"}}, TotalHits: 1}, nil
	}}
	srv := NewServer(Dependencies{Catalog: catalog, Logger: logger.NewTestLogger(t)})

	rec := do(t, srv.Router(), http.MethodGet, "/api/v1/programs?q=nursing&category=health&from=10&size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decode(t, rec)["totalHits"])

	rec = do(t, srv.Router(), http.MethodGet, "/api/v1/programs?size=-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetProgram(t *testing.T) {
	catalog := &MockProgramCatalog{GetFunc: func(ctx context.Context, programID string) (*searchprograms.Program, error) {
		if programID == "prog-1" {
			return &searchprograms.Program{ID: "prog-1", Name: "BSc Nursing"}, nil
		}
		return nil, fmt.Errorf("%w: %s", searchprograms.ErrProgramNotFound, programID)
	}}
	srv := NewServer(Dependencies{Catalog: catalog, Logger: logger.NewTestLogger(t)})

	rec := do(t, srv.Router(), http.MethodGet, "/api/v1/programs/prog-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BSc Nursing", decode(t, rec)["name"])

	rec = do(t, srv.Router(), http.MethodGet, "/api/v1/programs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PROGRAM_NOT_FOUND", errorCode(t, rec))
}

// ==========================
// Sessions
// ==========================

func TestSessionRoutes_StepGate(t *testing.T) {
	srv := NewServer(Dependencies{Sessions: newSessionManager(t, &fakeBackend{}), Logger: logger.NewTestLogger(t)})
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := sessionView(t, rec)["sessionId"].(string)
	assert.Equal(t, "/api/v1/sessions/"+id, rec.Header().Get("Location"))
	base := "/api/v1/sessions/" + id

	rec = do(t, h, http.MethodPatch, base+"/data", formdata.Data{formdata.PersonalInfo: map[string]interface{}{"surname": ""}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	errs := sessionView(t, rec)["errors"].(map[string]interface{})
	assert.Equal(t, []interface{}{"Surname is required"}, errs["personalInfo.surname"])

	rec = do(t, h, http.MethodPost, base+"/next", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "STEP_INCOMPLETE", errorCode(t, rec))
	assert.Equal(t, float64(0), sessionView(t, rec)["currentStep"])

	rec = do(t, h, http.MethodPatch, base+"/data", formdata.Data{formdata.PersonalInfo: formtest.PersonalInfo()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), sessionView(t, rec)["currentStep"])

	rec = do(t, h, http.MethodPost, base+"/steps/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := sessionView(t, rec)
	assert.Equal(t, float64(0), view["currentStep"])
	assert.Equal(t, "Doe", view["formData"].(map[string]interface{})["personalInfo"].(map[string]interface{})["surname"])

	rec = do(t, h, http.MethodPost, base+"/steps/3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "STEP_INCOMPLETE", errorCode(t, rec))
}

func TestSessionRoutes_SetField(t *testing.T) {
	srv := NewServer(Dependencies{Sessions: newSessionManager(t, &fakeBackend{}), Logger: logger.NewTestLogger(t)})
	h := srv.Router()
	id := sessionView(t, do(t, h, http.MethodPost, "/api/v1/sessions", nil))["sessionId"].(string)

	rec := do(t, h, http.MethodPut, "/api/v1/sessions/"+id+"/fields", map[string]interface{}{"path": "personalInfo.email", "value": "broken"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	errs := sessionView(t, rec)["errors"].(map[string]interface{})
	assert.Contains(t, errs, "personalInfo.email")

	rec = do(t, h, http.MethodPut, "/api/v1/sessions/"+id+"/fields", map[string]interface{}{"path": "email", "value": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))

	rec = do(t, h, http.MethodPut, "/api/v1/sessions/"+id+"/fields",
		map[string]interface{}{"path": "academicBackground.certificates.2000000000.type", "value": "WAEC"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

func TestSessionRoutes_CreateFromDraft(t *testing.T) {
	srv := NewServer(Dependencies{Sessions: newSessionManager(t, &fakeBackend{}), Logger: logger.NewTestLogger(t)})
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions", map[string]interface{}{"draftId": "draft-7"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := sessionView(t, rec)
	assert.Equal(t, "draft-7", view["draftId"])
	assert.Equal(t, true, view["stepCompletion"].(map[string]interface{})["0"])
	assert.Equal(t, "Doe", view["formData"].(map[string]interface{})["personalInfo"].(map[string]interface{})["surname"])

	rec = do(t, h, http.MethodPost, "/api/v1/sessions", map[string]interface{}{"draftId": "draft-8"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DRAFT_NOT_FOUND", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/sessions", map[string]interface{}{"draftId": 7})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

func TestSessionRoutes_FullSubmission(t *testing.T) {
	backend := &fakeBackend{}
	srv := NewServer(Dependencies{Sessions: newSessionManager(t, backend), Logger: logger.NewTestLogger(t)})
	h := srv.Router()
	base := "/api/v1/sessions/" + sessionView(t, do(t, h, http.MethodPost, "/api/v1/sessions", nil))["sessionId"].(string)

	draft := formtest.ValidDraft()
	sections := []string{
		formdata.PersonalInfo, formdata.AcademicBackground, formdata.ProgramSelection,
		formdata.Accommodation, formdata.Referee,
	}
	for i, section := range sections {
		rec := do(t, h, http.MethodPatch, base+"/data", formdata.Data{section: draft[section]})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		if i < len(sections)-1 {
			rec = do(t, h, http.MethodPost, base+"/next", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}
	}

	rec := do(t, h, http.MethodPost, base+"/submit", map[string]interface{}{"programId": "prog-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	outcome := body["outcome"].(map[string]interface{})
	assert.Equal(t, "submitted_success", outcome["state"])
	assert.Equal(t, "app-42", outcome["applicationId"])
	assert.Equal(t, "/apply/confirmation", outcome["redirectTo"])

	submits := backend.Submits()
	require.Len(t, submits, 1)
	assert.Equal(t, "prog-9", submits[0].ProgramID)

	view := body["session"].(map[string]interface{})
	assert.Equal(t, float64(0), view["currentStep"])
	assert.Empty(t, view["formData"].(map[string]interface{})["personalInfo"])
}

func TestSessionRoutes_UnknownAndDelete(t *testing.T) {
	srv := NewServer(Dependencies{Sessions: newSessionManager(t, &fakeBackend{}), Logger: logger.NewTestLogger(t)})
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, rec))

	id := sessionView(t, do(t, h, http.MethodPost, "/api/v1/sessions", nil))["sessionId"].(string)
	rec = do(t, h, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRoutes_DraftBannerReset(t *testing.T) {
	srv := NewServer(Dependencies{Sessions: newSessionManager(t, &fakeBackend{}), Logger: logger.NewTestLogger(t)})
	h := srv.Router()
	base := "/api/v1/sessions/" + sessionView(t, do(t, h, http.MethodPost, "/api/v1/sessions", nil))["sessionId"].(string)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPatch, base+"/data", formdata.Data{formdata.PersonalInfo: formtest.PersonalInfo()}).Code)

	rec := do(t, h, http.MethodPost, base+"/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "draft-1", sessionView(t, rec)["draftId"])

	rec = do(t, h, http.MethodDelete, base+"/banner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, sessionView(t, rec)["banner"])

	rec = do(t, h, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := sessionView(t, rec)
	assert.Nil(t, view["draftId"])
	assert.Empty(t, view["formData"].(map[string]interface{})["personalInfo"])
}

// ==========================
// Middleware and health
// ==========================

func TestHandler_CORSPreflight(t *testing.T) {
	srv := NewServer(Dependencies{
		Sessions:       newSessionManager(t, &fakeBackend{}),
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         logger.NewTestLogger(t),
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, srv.Handler(), http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestHealthRouter(t *testing.T) {
	healthy := HealthRouter(map[string]Check{
		"postgres": func(ctx context.Context) error { return nil },
	})
	rec := do(t, healthy, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	failing := HealthRouter(map[string]Check{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rec = do(t, failing, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "connection refused", body["checks"].(map[string]interface{})["redis"])

	rec = do(t, failing, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, failing, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
