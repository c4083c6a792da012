// internal/services/applications/submit-application/config.go
package submitapplication

import "time"

type Config struct {
	// DailyQuota caps submissions per email per UTC day; 0 disables the check.
	DailyQuota       int
	ProcessID        string
	StartProcess     bool
	SendConfirmation bool
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DailyQuota: 3,
		ProcessID:  "student-admission",
		Timeout:    30 * time.Second,
	}
}
