// internal/workers/admission/send-application-confirmation/config.go
package sendapplicationconfirmation

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
