package bridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_YAML(t *testing.T) {
	var v struct {
		D Duration `yaml:"d"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("d: 2.5s"), &v))
	assert.Equal(t, 2500*time.Millisecond, v.D.Std())

	// Bare numbers are seconds.
	require.NoError(t, yaml.Unmarshal([]byte("d: 30"), &v))
	assert.Equal(t, 30*time.Second, v.D.Std())

	assert.Error(t, yaml.Unmarshal([]byte("d: soon"), &v))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  name: toolbridge
  transport: http
  address: ":9090"
provider:
  base_url: https://connect.example.com
  api_key: secret
connect:
  poll_interval: 2.5s
  poll_timeout: 60s
  poll_grace: 3s
  auth_configs:
    GMAIL: ac_gmail_prod
registry:
  cache_ttl: 30s
  retry_delay: 3s
sessions:
  ttl: 45m
audit:
  backend: postgres
  retention_days: 30
database:
  dsn: postgres://localhost/toolbridge?sslmode=disable
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "https://connect.example.com", cfg.Provider.BaseURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Connect.PollInterval.Std())
	assert.Equal(t, 60*time.Second, cfg.Connect.PollTimeout.Std())
	assert.Equal(t, "ac_gmail_prod", cfg.Connect.AuthConfigs["GMAIL"])
	assert.Equal(t, 45*time.Minute, cfg.Sessions.TTL.Std())
	assert.Equal(t, "postgres", cfg.Audit.Backend)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: https://connect.example.com
  api_key: secret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "toolbridge", cfg.Server.Name)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Provider.Timeout.Std())
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL.Std())
	assert.Equal(t, "slog", cfg.Audit.Backend)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("TB_TEST_API_KEY", "from-env")
	path := writeConfig(t, `
provider:
  base_url: https://connect.example.com
  api_key: ${TB_TEST_API_KEY}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "provider: [not a map")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing provider base url",
			mutate:  func(c *Config) { c.Provider.BaseURL = "" },
			wantErr: "provider.base_url is required",
		},
		{
			name:    "missing provider api key",
			mutate:  func(c *Config) { c.Provider.APIKey = "" },
			wantErr: "provider.api_key is required",
		},
		{
			name:    "bad transport",
			mutate:  func(c *Config) { c.Server.Transport = "carrier-pigeon" },
			wantErr: "server.transport",
		},
		{
			name: "jwt enabled without key",
			mutate: func(c *Config) {
				c.Auth.JWT.Enabled = true
				c.Auth.JWT.SigningKey = ""
			},
			wantErr: "auth.jwt.signing_key",
		},
		{
			name: "postgres audit without dsn",
			mutate: func(c *Config) {
				c.Audit.Backend = "postgres"
				c.Database.DSN = ""
			},
			wantErr: "database.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Provider: ProviderConfig{BaseURL: "https://x", APIKey: "k"},
			}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_OK(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{BaseURL: "https://x", APIKey: "k"},
	}
	applyDefaults(cfg)
	assert.NoError(t, cfg.Validate())
}
