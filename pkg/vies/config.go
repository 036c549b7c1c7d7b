package vies

import "time"

// DefaultBaseURL public VIES REST endpoint of the European Commission
const DefaultBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api"

// Config represents the configuration for the VIES client
type Config struct {
	// BaseURL is the VIES REST API base URL
	BaseURL string

	// Timeout bounds a single lookup
	Timeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
