// Package config loads the YAML configuration of the relay server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidPort is returned for ports outside 0-65535.
	ErrInvalidPort = errors.New("config: port must be between 0 and 65535")

	// ErrTLSIncomplete is returned when only one of the TLS files is set.
	ErrTLSIncomplete = errors.New("config: tls requires both cert_file and key_file")

	// ErrStaticSource is returned when static files name both a directory
	// and a bucket.
	ErrStaticSource = errors.New("config: static.dir and static.s3 are mutually exclusive")

	// ErrStaticMount is returned for a mount path not starting with a slash.
	ErrStaticMount = errors.New("config: static.mount must start with a slash")

	// ErrLogLevel is returned for an unknown log level.
	ErrLogLevel = errors.New("config: unknown log level")

	// ErrLogFormat is returned for an unknown log format.
	ErrLogFormat = errors.New("config: unknown log format")

	// ErrNegative is returned for negative sizes and durations.
	ErrNegative = errors.New("config: value must not be negative")
)

// Config is the top-level configuration file.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Static     StaticConfig     `yaml:"static"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// ServerConfig configures the public listener.
type ServerConfig struct {
	Host string    `yaml:"host"`
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`

	// H2C enables HTTP/2 over cleartext TCP on plain listeners.
	H2C bool `yaml:"h2c"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds handler execution. Zero disables it.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes rejects larger request bodies with 413. Zero disables it.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// TLSConfig names the PEM files for HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether HTTPS is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// StaticConfig configures the static file responder. Files come from Dir or
// from an S3 bucket; with neither set no static files are served.
type StaticConfig struct {
	Dir           string    `yaml:"dir"`
	S3            *S3Config `yaml:"s3"`
	Mount         string    `yaml:"mount"`
	CacheControl  string    `yaml:"cache_control"`
	MaxRangeBytes int64     `yaml:"max_range_bytes"`
	SPAFallback   bool      `yaml:"spa_fallback"`
}

// Enabled reports whether a file source is configured.
func (s StaticConfig) Enabled() bool {
	return s.Dir != "" || s.S3 != nil
}

// S3Config selects a bucket as the static file source.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// AdminConfig configures the separate admin listener. An empty Address
// disables it.
type AdminConfig struct {
	Address string `yaml:"address"`
	Metrics bool   `yaml:"metrics"`
	Health  bool   `yaml:"health"`
}

// MiddlewareConfig toggles the middleware installed in front of the routes.
type MiddlewareConfig struct {
	RequestID       bool               `yaml:"request_id"`
	AccessLog       bool               `yaml:"access_log"`
	SecurityHeaders bool               `yaml:"security_headers"`
	Compression     bool               `yaml:"compression"`
	Tracing         bool               `yaml:"tracing"`
	RealIP          bool               `yaml:"real_ip"`
	ProxyHeaders    *ProxyHeaderConfig `yaml:"proxy_headers"`
	CORS            *CORSConfig        `yaml:"cors"`
}

// ProxyHeaderConfig enables reverse proxy header handling.
type ProxyHeaderConfig struct {
	TrustedProxies  []string `yaml:"trusted_proxies"`
	EnableForwarded bool     `yaml:"enable_forwarded"`
}

// CORSConfig enables cross-origin requests for the listed origins.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Static: StaticConfig{
			Mount: "/*",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Admin: AdminConfig{
			Metrics: true,
			Health:  true,
		},
		Middleware: MiddlewareConfig{
			RequestID:       true,
			AccessLog:       true,
			SecurityHeaders: true,
			Compression:     true,
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for contradictions and out of range
// values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port %d", ErrInvalidPort, c.Server.Port))
	}

	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		errs = append(errs, ErrTLSIncomplete)
	}

	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"server.request_timeout":  c.Server.RequestTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNegative, name))
		}
	}

	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("%w: server.max_body_bytes", ErrNegative))
	}

	if c.Static.Dir != "" && c.Static.S3 != nil {
		errs = append(errs, ErrStaticSource)
	}

	if c.Static.S3 != nil && c.Static.S3.Bucket == "" {
		errs = append(errs, errors.New("config: static.s3.bucket is required"))
	}

	if !strings.HasPrefix(c.Static.Mount, "/") {
		errs = append(errs, fmt.Errorf("%w: %q", ErrStaticMount, c.Static.Mount))
	}

	if c.Static.MaxRangeBytes < 0 {
		errs = append(errs, fmt.Errorf("%w: static.max_range_bytes", ErrNegative))
	}

	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}

	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrLogFormat, f))
	}

	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrLogLevel, l.Level)
	}
	return level, nil
}

// NewLogger returns a logger writing to w in the configured format and
// level.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrLogFormat, l.Format)
	}
}
