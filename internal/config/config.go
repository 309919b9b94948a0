// Package config assembles the explicit runtime configuration for the CLI.
// All settings flow through this struct; nothing reads ambient package-level
// state at call sites.
package config

import (
	"fmt"
	"os"
	"strings"
)

// DefaultConcurrency bounds how many analysis streams run at once. A value
// of 1 reproduces strictly sequential one-at-a-time processing.
const DefaultConcurrency = 2

// Config carries everything the scheduler and API client need at startup.
type Config struct {
	// ServerURL is the base URL of the compliance-analysis service.
	ServerURL string

	// Username and Password authenticate against POST /token.
	Username string
	Password string

	// Brand is the brand label attached to every submission in a batch.
	Brand string

	// Message is the optional free-text instruction sent with each check.
	Message string

	// AnalysisModes selects which analyses the service runs on videos.
	// Empty means the service default.
	AnalysisModes []string

	// Concurrency is the maximum number of simultaneously open streams.
	Concurrency int

	// ReportDir, when set, is where compressed report exports are written.
	ReportDir string
}

// FromEnv fills unset credential fields from COMPLIANCE_USERNAME,
// COMPLIANCE_PASSWORD, and COMPLIANCE_SERVER_URL.
func (c *Config) FromEnv() {
	if c.Username == "" {
		c.Username = os.Getenv("COMPLIANCE_USERNAME")
	}
	if c.Password == "" {
		c.Password = os.Getenv("COMPLIANCE_PASSWORD")
	}
	if c.ServerURL == "" {
		c.ServerURL = os.Getenv("COMPLIANCE_SERVER_URL")
	}
}

// Validate checks the configuration is usable and normalizes the server URL.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required (--server or COMPLIANCE_SERVER_URL)")
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	return nil
}
