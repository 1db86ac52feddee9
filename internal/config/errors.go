package config

import (
	"fmt"
)

// ConfigError reports a missing or conflicting run input. It is always fatal
// and is raised before any network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError for field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// RequireDatabase checks that the store is addressable.
func (c *Config) RequireDatabase() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return NewConfigError("store.driver", fmt.Sprintf("unsupported driver %q (valid: postgres, sqlite)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		return NewConfigError("store.database_url", "not set (use SALARY_STORE_DATABASE_URL or config.yaml)")
	}
	return nil
}

// RequireHTMLSource checks that the HTML source endpoints are configured.
func (c *Config) RequireHTMLSource() error {
	h := c.Source.HTML
	if h.BaseURL == "" {
		return NewConfigError("source.html.base_url", "not set")
	}
	if h.RosterPath == "" || h.DepartmentPath == "" {
		return NewConfigError("source.html", "roster_path and department_path are required")
	}
	return nil
}

// ValidateIngest checks numeric run settings.
func (c *Config) ValidateIngest() error {
	if c.Ingest.BatchSize <= 0 {
		return NewConfigError("ingest.batch_size", "must be positive")
	}
	if c.Ingest.LatestFiscalYear < 1900 {
		return NewConfigError("ingest.latest_fiscal_year", "must be a four-digit start year")
	}
	if c.Fetch.Retries < 0 {
		return NewConfigError("fetch.retries", "must not be negative")
	}
	if c.Fetch.DelayMs < 0 {
		return NewConfigError("fetch.delay_ms", "must not be negative")
	}
	return nil
}
