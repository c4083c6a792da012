package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: db
    database: admissions
    user: portal
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "application-form-storage", cfg.Form.StorageKey)
	assert.Equal(t, MirrorMemory, cfg.Form.MirrorBackend)
	assert.Equal(t, BackendLocal, cfg.Form.BackendMode)
	assert.Equal(t, 2*time.Second, GetDuration(cfg.Form.DraftDebounce))
	assert.Equal(t, 3*time.Second, GetDuration(cfg.Form.DraftAckDuration))
	assert.Equal(t, 3*time.Second, GetDuration(cfg.Form.RedirectDelay))
	assert.Equal(t, 5, cfg.Form.DraftMaxRetries)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "programs", cfg.Database.Elasticsearch.ProgramIndex)
	assert.Equal(t, "student-admission", cfg.Submission.ProcessID)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_DB_USER", "applicant_svc")
	path := writeConfig(t, `
database:
  postgres:
    host: db
    database: admissions
    user: ${TEST_DB_USER}
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "applicant_svc", cfg.Database.Postgres.User)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "local backend needs postgres",
			body:    "form:\n  backend_mode: local\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "http backend needs url",
			body:    "form:\n  backend_mode: http\n",
			wantErr: "form.backend_url is required",
		},
		{
			name:    "unknown mirror",
			body:    "form:\n  backend_mode: http\n  backend_url: http://x\n  mirror_backend: sqlite\n",
			wantErr: "form.mirror_backend must be one of",
		},
		{
			name:    "redis mirror needs address",
			body:    "form:\n  backend_mode: http\n  backend_url: http://x\n  mirror_backend: redis\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "camunda enabled without broker",
			body:    "form:\n  backend_mode: http\n  backend_url: http://x\ncamunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_HTTPBackendFromEnv(t *testing.T) {
	t.Setenv("FORM_BACKEND_URL", "http://backend:8080")
	cfg, err := LoadFromFile(writeConfig(t, "form:\n  backend_mode: http\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.Form.BackendURL)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", p.GetDSN())
}

func TestGetWorkerConfig(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    host: db
    database: admissions
    user: portal
workers:
  update-application-status:
    enabled: false
    max_jobs_active: 2
    timeout: 5000
`))
	require.NoError(t, err)

	got := GetWorkerConfig(cfg, "update-application-status")
	assert.False(t, got.Enabled)
	assert.Equal(t, 2, got.MaxJobsActive)
	assert.Equal(t, 5*time.Second, GetDuration(got.Timeout))

	fallback := GetWorkerConfig(cfg, "send-application-confirmation")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)
	assert.Equal(t, 30*time.Minute, GetDuration(cfg.Form.SessionIdle))
}
