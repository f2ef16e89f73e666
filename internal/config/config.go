// Package config loads the service configuration from TOML files and
// GEOGOV_* environment variables.
//
// Loading is layered: a base config.toml, an optional config.<GEOGOV_ENV>.toml
// overlay beside it, then per-section finalize (defaults, environment,
// validation).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/geogov/pkg/database"
	"github.com/JaimeStill/geogov/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvGeogovEnv             = "GEOGOV_ENV"
	EnvGeogovShutdownTimeout = "GEOGOV_SHUTDOWN_TIMEOUT"
	EnvGeogovVersion         = "GEOGOV_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "GEOGOV_DB_URL",
	Host:            "GEOGOV_DB_HOST",
	Port:            "GEOGOV_DB_PORT",
	Name:            "GEOGOV_DB_NAME",
	User:            "GEOGOV_DB_USER",
	Password:        "GEOGOV_DB_PASSWORD",
	SSLMode:         "GEOGOV_DB_SSL_MODE",
	MaxOpenConns:    "GEOGOV_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "GEOGOV_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "GEOGOV_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "GEOGOV_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "GEOGOV_STORAGE_CONTAINER_NAME",
	ConnectionString: "GEOGOV_STORAGE_CONNECTION_STRING",
	ServiceURL:       "GEOGOV_STORAGE_SERVICE_URL",
}

// Config is the root configuration for the geogov service and CLI.
type Config struct {
	Server    ServerConfig         `toml:"server"`
	API       APIConfig            `toml:"api"`
	Logging   LoggingConfig        `toml:"logging"`
	Policy    PolicyConfig         `toml:"policy"`
	Receipts  ReceiptsConfig       `toml:"receipts"`
	Database  database.Config      `toml:"database"`
	Storage   storage.Config       `toml:"storage"`
	Redis     RedisConfig          `toml:"redis"`
	Retrieval RetrievalConfig      `toml:"retrieval"`
	Pipeline  PipelineConfig       `toml:"pipeline"`
	Judgment  JudgmentConfig       `toml:"judgment"`
	Agent     gaconfig.AgentConfig `toml:"agent"`

	ShutdownTimeout string `toml:"shutdown_timeout"`
	Version         string `toml:"version"`
}

// Env returns the GEOGOV_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvGeogovEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Load reads config.toml from the working directory. See LoadFile.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile reads the base config at path when it exists, merges the
// environment overlay found next to it, and finalizes every section. A
// missing base file leaves defaults and environment variables in charge.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	loaded, err := load(path)
	switch {
	case err == nil:
		cfg = loaded
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	if overlay := overlayPath(path); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sections.
func (c *Config) Merge(overlay *Config) {
	mergeString(&c.ShutdownTimeout, overlay.ShutdownTimeout)
	mergeString(&c.Version, overlay.Version)

	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Logging.Merge(&overlay.Logging)
	c.Policy.merge(&overlay.Policy)
	c.Receipts.merge(&overlay.Receipts)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Redis.merge(&overlay.Redis)
	c.Retrieval.merge(&overlay.Retrieval)
	c.Pipeline.merge(&overlay.Pipeline)
	c.mergeAgent(&overlay.Agent)
	if overlay.Judgment.Enabled {
		c.Judgment.Enabled = true
	}
}

// go-agents merges into a fully populated config, so both layers are folded
// onto the defaults.
func (c *Config) mergeAgent(overlay *gaconfig.AgentConfig) {
	merged := gaconfig.DefaultAgentConfig()
	merged.Merge(&c.Agent)
	merged.Merge(overlay)
	c.Agent = merged
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	envString(EnvGeogovShutdownTimeout, &c.ShutdownTimeout)
	envString(EnvGeogovVersion, &c.Version)
	envBool(EnvJudgmentEnabled, &c.Judgment.Enabled)

	if err := validateDurations(field{"shutdown_timeout", c.ShutdownTimeout}); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"api", c.API.Finalize},
		{"logging", c.Logging.Finalize},
		{"policy", c.Policy.finalize},
		{"receipts", c.Receipts.finalize},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"redis", c.Redis.finalize},
		{"retrieval", c.Retrieval.finalize},
		{"pipeline", c.Pipeline.finalize},
		{"database", c.finalizeDatabase},
		{"agent", c.finalizeAgent},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// The database section is only validated when the postgres receipt backend
// needs it.
func (c *Config) finalizeDatabase() error {
	err := c.Database.Finalize(databaseEnv)
	if c.Receipts.Backend != BackendPostgres {
		return nil
	}
	return err
}

func (c *Config) finalizeAgent() error {
	err := FinalizeAgent(&c.Agent)
	if !c.Judgment.Enabled {
		return nil
	}
	return err
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	env := os.Getenv(EnvGeogovEnv)
	if env == "" {
		return ""
	}
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
