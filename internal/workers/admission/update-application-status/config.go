// internal/workers/admission/update-application-status/config.go
package updateapplicationstatus

import "time"

type Config struct {
	Timeout time.Duration
	// Actor is recorded in the audit log when the job carries none.
	Actor string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
		Actor:   "admissions-process",
	}
}
