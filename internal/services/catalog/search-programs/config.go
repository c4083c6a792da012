// internal/services/catalog/search-programs/config.go
package searchprograms

import "time"

type Config struct {
	Index       string
	DefaultSize int
	MaxSize     int
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Index:       "programs",
		DefaultSize: 20,
		MaxSize:     100,
		Timeout:     10 * time.Second,
	}
}
