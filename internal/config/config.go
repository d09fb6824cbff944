// Package config loads server configuration from defaults, an optional
// TOML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Server holds listener settings.
type Server struct {
	Port       string `toml:"port"`
	CORSOrigin string `toml:"cors_origin"`
	// MaxUploadBytes limits the upload request body; 0 means no limit.
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
	// TrustProxyHeaders keys clients by X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool `toml:"trust_proxy_headers"`
}

// Storage selects where records and files live.
type Storage struct {
	DataDir         string `toml:"data_dir"`
	UploadDir       string `toml:"upload_dir"`
	CatalogBackend  string `toml:"catalog_backend"`
	CatalogPath     string `toml:"catalog_path"`
	DatabaseURL     string `toml:"database_url"`
	ArtifactBackend string `toml:"artifact_backend"`
}

// S3 addresses the MinIO bucket used by the minio artifact backend.
type S3 struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
}

// Gemini configures the explanation provider.
type Gemini struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	// Timeout is a Go duration string; empty means none.
	Timeout string `toml:"timeout"`
	// RatePerMinute limits /explain per client; 0 disables the limit.
	RatePerMinute int `toml:"rate_per_minute"`
}

// Logging selects log format and level.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the complete server configuration.
type Config struct {
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
	S3      S3      `toml:"s3"`
	Gemini  Gemini  `toml:"gemini"`
	Logging Logging `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Port:       "3000",
			CORSOrigin: "*",
		},
		Storage: Storage{
			DataDir:         ".",
			CatalogBackend:  "json",
			ArtifactBackend: "disk",
		},
		S3: S3{
			Prefix: "uploads/",
		},
		Gemini: Gemini{
			Model: "gemini-2.0-flash",
		},
		Logging: Logging{
			Format: "auto",
			Level:  "info",
		},
	}
}

// Load applies the TOML file at path (if it exists) and then environment
// overrides on top of Default, fills derived paths and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. PORT and GEMINI_API_KEY keep
// their conventional names.
func (c *Config) applyEnv() error {
	str := map[string]*string{
		"PORT":                 &c.Server.Port,
		"BBR_CORS_ORIGIN":      &c.Server.CORSOrigin,
		"BBR_DATA_DIR":         &c.Storage.DataDir,
		"BBR_UPLOAD_DIR":       &c.Storage.UploadDir,
		"BBR_CATALOG_BACKEND":  &c.Storage.CatalogBackend,
		"BBR_CATALOG_PATH":     &c.Storage.CatalogPath,
		"DATABASE_URL":         &c.Storage.DatabaseURL,
		"BBR_ARTIFACT_BACKEND": &c.Storage.ArtifactBackend,
		"BBR_S3_ENDPOINT":      &c.S3.Endpoint,
		"BBR_S3_ACCESS_KEY":    &c.S3.AccessKey,
		"BBR_S3_SECRET_KEY":    &c.S3.SecretKey,
		"BBR_BUCKET":           &c.S3.Bucket,
		"BBR_S3_PREFIX":        &c.S3.Prefix,
		"GEMINI_API_KEY":       &c.Gemini.APIKey,
		"BBR_GEMINI_MODEL":     &c.Gemini.Model,
		"BBR_EXPLAIN_TIMEOUT":  &c.Gemini.Timeout,
		"BBR_LOG_FORMAT":       &c.Logging.Format,
		"BBR_LOG_LEVEL":        &c.Logging.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("BBR_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ConfigValidationError{Field: "BBR_MAX_UPLOAD_BYTES", Message: "must be a valid integer"}
		}
		c.Server.MaxUploadBytes = n
	}
	if v := os.Getenv("BBR_TRUST_PROXY_HEADERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ConfigValidationError{Field: "BBR_TRUST_PROXY_HEADERS", Message: "must be true or false"}
		}
		c.Server.TrustProxyHeaders = b
	}
	if v := os.Getenv("BBR_EXPLAIN_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ConfigValidationError{Field: "BBR_EXPLAIN_RATE_PER_MINUTE", Message: "must be a valid integer"}
		}
		c.Gemini.RatePerMinute = n
	}
	return nil
}

// normalize fills paths derived from DataDir.
func (c *Config) normalize() {
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = filepath.Join(c.Storage.DataDir, "uploads")
	}
	if c.Storage.CatalogPath == "" {
		switch c.Storage.CatalogBackend {
		case "sqlite":
			c.Storage.CatalogPath = filepath.Join(c.Storage.DataDir, "books.db")
		case "badger":
			c.Storage.CatalogPath = filepath.Join(c.Storage.DataDir, "books.badger")
		default:
			c.Storage.CatalogPath = filepath.Join(c.Storage.DataDir, "books.json")
		}
	}
}

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + c.Server.Port }

// ExplainTimeout parses Gemini.Timeout; validation guarantees it is well formed.
func (c *Config) ExplainTimeout() time.Duration {
	if c.Gemini.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Gemini.Timeout)
	return d
}
