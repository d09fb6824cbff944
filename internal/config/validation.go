package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects every problem before failing, so one start
// attempt reports them all.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidateRequired records an error when value is empty.
func (v *ConfigValidator) ValidateRequired(key, value string) {
	if value == "" {
		v.AddError(key, "required when this backend is selected")
	}
}

// ValidateURL validates that a value is an http(s) URL.
func (v *ConfigValidator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
	}
}

// ValidatePort validates that a value is a valid port number.
func (v *ConfigValidator) ValidatePort(key, value string) {
	// Handle ":port" format
	portStr := strings.TrimPrefix(value, ":")

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidateNonNegative validates that n is zero or more.
func (v *ConfigValidator) ValidateNonNegative(key string, n int64) {
	if n < 0 {
		v.AddError(key, "must not be negative")
	}
}

// ValidateDuration validates a Go duration string when present.
func (v *ConfigValidator) ValidateDuration(key, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 30s, 2m)")
		return
	}
	if d < 0 {
		v.AddError(key, "must not be negative")
	}
}

// Validate checks the whole configuration. The Gemini API key is
// deliberately not required: without it only /explain fails.
func (c *Config) Validate() error {
	v := NewConfigValidator()

	v.ValidatePort("server.port", c.Server.Port)
	v.ValidateNonNegative("server.max_upload_bytes", c.Server.MaxUploadBytes)
	if c.Server.CORSOrigin != "*" && c.Server.CORSOrigin != "" {
		v.ValidateURL("server.cors_origin", c.Server.CORSOrigin)
	}

	v.ValidateEnum("storage.catalog_backend", c.Storage.CatalogBackend,
		[]string{"json", "sqlite", "badger", "postgres"})
	v.ValidateEnum("storage.artifact_backend", c.Storage.ArtifactBackend,
		[]string{"disk", "minio"})

	if c.Storage.CatalogBackend == "postgres" {
		v.ValidateRequired("storage.database_url", c.Storage.DatabaseURL)
		if c.Storage.DatabaseURL != "" &&
			!strings.HasPrefix(c.Storage.DatabaseURL, "postgres://") &&
			!strings.HasPrefix(c.Storage.DatabaseURL, "postgresql://") {
			v.AddError("storage.database_url", "must be a valid PostgreSQL connection string")
		}
	}

	if c.Storage.ArtifactBackend == "minio" {
		v.ValidateRequired("s3.endpoint", c.S3.Endpoint)
		v.ValidateRequired("s3.access_key", c.S3.AccessKey)
		v.ValidateRequired("s3.secret_key", c.S3.SecretKey)
		v.ValidateRequired("s3.bucket", c.S3.Bucket)
		// Can be host:port or URL
		if strings.Contains(c.S3.Endpoint, "://") {
			v.ValidateURL("s3.endpoint", c.S3.Endpoint)
		}
	}

	v.ValidateDuration("gemini.timeout", c.Gemini.Timeout)
	v.ValidateNonNegative("gemini.rate_per_minute", int64(c.Gemini.RatePerMinute))
	if c.Gemini.Model == "" {
		v.AddError("gemini.model", "must not be empty")
	}

	v.ValidateEnum("logging.format", c.Logging.Format, []string{"auto", "json", "console"})
	v.ValidateEnum("logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}
