package internal

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage backends.
const (
	BackendFS    = "fs"
	BackendMem   = "mem"
	BackendS3    = "s3"
	BackendAzure = "azure"
)

// EncodingUTF8 is the only supported note document encoding.
const EncodingUTF8 = "utf-8"

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
}

type validator interface {
	Validate() error
}

// Validate validates every configuration section.
func (c *Config) Validate() error {
	for _, section := range []validator{&c.App, &c.Storage, &c.SQLite, &c.Auth} {
		if err := section.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StorageConfig selects and configures the note storage backend.
//
// Root is backend-specific: the base directory for "fs", the bucket name
// for "s3", ignored for "mem" and "azure" (the Azure container comes from
// its own block). Scope optionally nests the notebook tree under a path
// prefix so several deployments can share one backend.
type StorageConfig struct {
	Backend  string      `yaml:"backend"`
	Root     string      `yaml:"root"`
	Scope    string      `yaml:"scope"`
	Encoding string      `yaml:"encoding"`
	S3       S3Config    `yaml:"s3"`
	Azure    AzureConfig `yaml:"azure"`
}

// Validate normalises empty fields to their defaults, then applies the
// backend-specific rules.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	switch strings.ToLower(c.Encoding) {
	case "", "utf-8", "utf8":
		c.Encoding = EncodingUTF8
	default:
		return fmt.Errorf("storage: unsupported encoding %q", c.Encoding)
	}
	switch c.Backend {
	case BackendFS:
		if c.Root == "" {
			return fmt.Errorf("storage: backend is %q but root is empty", BackendFS)
		}
		return nil
	case BackendMem:
		return nil
	case BackendS3:
		if c.Root == "" {
			return fmt.Errorf("storage: backend is %q but root (bucket) is empty", BackendS3)
		}
		return c.S3.Validate()
	case BackendAzure:
		return c.Azure.Validate()
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Backend)
	}
}

// S3Config holds S3 client configuration. Endpoint overrides the AWS
// default for S3-compatible stores (MinIO, localstack), which usually
// also need path-style addressing.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	if c.Region == "" && c.Endpoint == "" {
		return fmt.Errorf("storage: s3 needs a region or an endpoint")
	}
	return nil
}

// AzureConfig holds Azure Blob Storage client configuration.
type AzureConfig struct {
	ConnectionString string `yaml:"connection_string"`
	Container        string `yaml:"container"`
}

// Validate validates the Azure configuration.
func (c *AzureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ConnectionString, validation.Required),
		validation.Field(&c.Container, validation.Required),
	)
}

// SQLiteConfig holds the path of the search index database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sqlite: path is empty")
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration. An empty mode falls back to
// "disabled".
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	switch c.Mode {
	case AuthModeDisabled:
		return nil
	case AuthModeToken:
		if c.Token == "" {
			return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
		}
		return nil
	default:
		return fmt.Errorf("auth: unknown mode %q", c.Mode)
	}
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the HTTP listener configuration. An empty host binds
// all interfaces.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the listen address in host:port form.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Port: 8080},
		},
		Storage: StorageConfig{
			Backend:  BackendFS,
			Root:     "./notebooks",
			Encoding: EncodingUTF8,
		},
		SQLite: SQLiteConfig{
			Path: "./othala.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
