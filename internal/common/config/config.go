package config

import "fmt"

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Form          FormConfig              `mapstructure:"form"`
	Submission    SubmissionConfig        `mapstructure:"submission"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	HealthAddress   string   `mapstructure:"health_address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// FormConfig drives the wizard sessions.
type FormConfig struct {
	StorageKey       string `mapstructure:"storage_key"`
	MirrorBackend    string `mapstructure:"mirror_backend"` // memory, file, redis
	MirrorDir        string `mapstructure:"mirror_dir"`
	SnapshotTTL      int    `mapstructure:"snapshot_ttl"`      // milliseconds, redis only
	DraftDebounce    int    `mapstructure:"draft_debounce"`    // milliseconds
	DraftAckDuration int    `mapstructure:"draft_ack"`         // milliseconds
	DraftMaxRetries  int    `mapstructure:"draft_max_retries"` // consecutive automatic retries
	RedirectDelay    int    `mapstructure:"redirect_delay"`    // milliseconds
	ConfirmationURL  string `mapstructure:"confirmation_url"`
	BackendMode      string `mapstructure:"backend_mode"` // local, http
	BackendURL       string `mapstructure:"backend_url"`
	BackendTimeout   int    `mapstructure:"backend_timeout"` // milliseconds
	SessionIdle      int    `mapstructure:"session_idle"`    // milliseconds before an idle session is evicted
}

type SubmissionConfig struct {
	DailyQuota       int    `mapstructure:"daily_quota"`
	ProcessID        string `mapstructure:"process_id"`
	StartProcess     bool   `mapstructure:"start_process"`
	SendConfirmation bool   `mapstructure:"send_confirmation"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Enabled        bool   `mapstructure:"enabled"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the settings for one admission-process job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ProgramIndex string   `mapstructure:"program_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type NotificationConfig struct {
	Email struct {
		Enabled bool   `mapstructure:"enabled"`
		Subject string `mapstructure:"subject"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
