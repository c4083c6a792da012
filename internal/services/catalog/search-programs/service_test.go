// internal/services/catalog/search-programs/service_test.go
package searchprograms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const searchBody = `{
	"took": 3,
	"hits": {
		"total": {"value": 2},
		"hits": [
			{"_id": "electrical-installation", "_source": {"name": "Electrical Installation", "category": "engineering",
				"courses": [{"id": "domestic-wiring", "title": "Domestic Wiring"}]}},
			{"_id": "solar-pv", "_source": {"id": "solar-pv", "name": "Solar PV Systems", "category": "engineering"}}
		]
	}
}`

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

func createTestServer(t *testing.T, status int, body string) (*elasticsearch.Client, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		seen = append(seen, rec)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, &seen
}

func createTestService(t *testing.T, client *elasticsearch.Client) *Service {
	return NewService(&Config{Index: "programs", DefaultSize: 20, MaxSize: 50, Timeout: 5 * time.Second},
		client, logger.NewTestLogger(t))
}

// ==========================
// Query Builder Tests
// ==========================

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name       string
		input      *Input
		wantMatch  string
		wantFilter bool
		wantSort   bool
	}{
		{name: "empty lists everything sorted", input: &Input{}, wantMatch: "match_all", wantSort: true},
		{name: "keyword search", input: &Input{Query: "wiring"}, wantMatch: "multi_match"},
		{name: "category only", input: &Input{Category: "engineering"}, wantMatch: "match_all", wantFilter: true, wantSort: true},
		{name: "keyword and category", input: &Input{Query: "solar", Category: "engineering"}, wantMatch: "multi_match", wantFilter: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := BuildQuery(tt.input)
			boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})

			must := boolQuery["must"].([]interface{})
			require.Len(t, must, 1)
			assert.Contains(t, must[0], tt.wantMatch)

			_, hasFilter := boolQuery["filter"]
			assert.Equal(t, tt.wantFilter, hasFilter)
			_, hasSort := q["sort"]
			assert.Equal(t, tt.wantSort, hasSort)
		})
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestService_Execute_Success(t *testing.T) {
	client, seen := createTestServer(t, http.StatusOK, searchBody)
	svc := createTestService(t, client)

	out, err := svc.Execute(context.Background(), &Input{Query: "electrical", Category: "engineering", Size: 500})
	require.NoError(t, err)

	assert.Equal(t, int64(2), out.TotalHits)
	assert.Equal(t, 3, out.Took)
	require.Len(t, out.Programs, 2)
	assert.Equal(t, "electrical-installation", out.Programs[0].ID)
	assert.Equal(t, "Domestic Wiring", out.Programs[0].Courses[0].Title)
	assert.Equal(t, "solar-pv", out.Programs[1].ID)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "/programs/_search", req.Path)
	assert.Contains(t, req.Query, "size=50")
	assert.Contains(t, req.Body, "query")
}

func TestService_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode apperrors.ErrorCode
	}{
		{name: "missing index", status: http.StatusNotFound, body: `{"error":{"type":"index_not_found_exception"}}`, wantCode: apperrors.ErrCodeIndexNotFound},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"type":"parsing_exception"}}`, wantCode: apperrors.ErrCodeSearchQueryFailed},
		{name: "malformed body", status: http.StatusOK, body: `{"hits":`, wantCode: apperrors.ErrCodeSearchQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := createTestServer(t, tt.status, tt.body)
			_, err := createTestService(t, client).Execute(context.Background(), &Input{Query: "x"})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), err.Error())
		})
	}
}

func TestService_ProgramTitle(t *testing.T) {
	client, seen := createTestServer(t, http.StatusOK,
		`{"_id":"electrical-installation","found":true,"_source":{"name":"Electrical Installation"}}`)
	svc := createTestService(t, client)

	title, err := svc.ProgramTitle(context.Background(), "electrical-installation")
	require.NoError(t, err)
	assert.Equal(t, "Electrical Installation", title)
	require.Len(t, *seen, 1)
	assert.True(t, strings.HasSuffix((*seen)[0].Path, "/electrical-installation"))
}

func TestService_Get_NotFound(t *testing.T) {
	client, _ := createTestServer(t, http.StatusNotFound, `{"_id":"unknown","found":false}`)
	_, err := createTestService(t, client).Get(context.Background(), "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProgramNotFound))
}
