// internal/services/applications/send-confirmation/config.go
package sendconfirmation

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	Subject      string
	SMSSenderID  string
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Subject: "Your application has been received",
		Timeout: 15 * time.Second,
	}
}
