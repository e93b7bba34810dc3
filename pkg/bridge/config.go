// Package bridge provides the main broker orchestration: it wires the
// connect provider client, registry fetcher, connection poller, session
// store, and audit logging behind one facade exposed over MCP and REST.
package bridge

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML strings like "2.5s".
// Bare numbers are interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if parsed, err := time.ParseDuration(value.Value); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var seconds float64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the complete broker configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Connect  ConnectConfig  `yaml:"connect"`
	Registry RegistryConfig `yaml:"registry"`
	Sessions SessionsConfig `yaml:"sessions"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"` // "stdio", "http"
	Address   string `yaml:"address"`
}

// ProviderConfig configures the connect provider client.
type ProviderConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
}

// ConnectConfig configures connection initiation and polling.
type ConnectConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	PollTimeout  Duration `yaml:"poll_timeout"`
	PollGrace    Duration `yaml:"poll_grace"`

	// AuthConfigs maps toolkit slugs to provider auth config IDs. A
	// toolkit absent from this map cannot be connected.
	AuthConfigs map[string]string `yaml:"auth_configs"`
}

// RegistryConfig configures the toolkit registry cache.
type RegistryConfig struct {
	CacheTTL        Duration `yaml:"cache_ttl"`
	RetryDelay      Duration `yaml:"retry_delay"`
	RefreshDebounce Duration `yaml:"refresh_debounce"`
}

// SessionsConfig configures the session store.
type SessionsConfig struct {
	TTL             Duration `yaml:"ttl"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	JWT            JWTAuthConfig    `yaml:"jwt"`
	APIKeys        APIKeyAuthConfig `yaml:"api_keys"`
	AllowAnonymous bool             `yaml:"allow_anonymous"` // default: false
}

// JWTAuthConfig configures JWT bearer authentication.
type JWTAuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SigningKey    string `yaml:"signing_key"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	RoleClaimPath string `yaml:"role_claim_path"`
	RolePrefix    string `yaml:"role_prefix"`
}

// APIKeyAuthConfig configures API key authentication.
type APIKeyAuthConfig struct {
	Enabled bool        `yaml:"enabled"`
	Keys    []APIKeyDef `yaml:"keys"`
}

// APIKeyDef defines an API key. KeyHash is a bcrypt hash of the key value.
type APIKeyDef struct {
	KeyHash string   `yaml:"key_hash"`
	Name    string   `yaml:"name"`
	Roles   []string `yaml:"roles"`
}

// DatabaseConfig configures the database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	// Backend selects where audit events go: "postgres", "slog", "none".
	Backend         string   `yaml:"backend"`
	RetentionDays   int      `yaml:"retention_days"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text"
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns a configuration with all defaults applied. Provider
// credentials still have to be filled in before the config validates.
func DefaultConfig() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// defaultSessionCleanupInterval is how often expired sessions are swept.
const defaultSessionCleanupInterval = 5 * time.Minute

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "toolbridge"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "stdio"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = Duration(10 * time.Second)
	}
	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = Duration(30 * time.Minute)
	}
	if cfg.Sessions.CleanupInterval == 0 {
		cfg.Sessions.CleanupInterval = Duration(defaultSessionCleanupInterval)
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "slog"
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.Audit.CleanupInterval == 0 {
		cfg.Audit.CleanupInterval = Duration(time.Hour)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Provider.BaseURL == "" {
		errs = append(errs, "provider.base_url is required")
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, "provider.api_key is required")
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Sprintf("server.transport %q is not supported (use stdio or http)", c.Server.Transport))
	}

	if c.Auth.JWT.Enabled && c.Auth.JWT.SigningKey == "" {
		errs = append(errs, "auth.jwt.signing_key is required when JWT auth is enabled")
	}
	if c.Auth.APIKeys.Enabled {
		for i, key := range c.Auth.APIKeys.Keys {
			if key.KeyHash == "" {
				errs = append(errs, fmt.Sprintf("auth.api_keys.keys[%d].key_hash is required", i))
			}
		}
	}

	switch c.Audit.Backend {
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required when audit.backend is postgres")
		}
	case "slog", "none":
	default:
		errs = append(errs, fmt.Sprintf("audit.backend %q is not supported (use postgres, slog, or none)", c.Audit.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
