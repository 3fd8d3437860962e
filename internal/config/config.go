// Package config manages vigil configuration
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/kv"
)

// Environment variables read on top of the config file
const (
	EnvHome        = "VIGIL_HOME"
	EnvAddr        = "VIGIL_ADDR"
	EnvAPIKey      = "VIGIL_API_KEY"
	EnvRelayURL    = "VIGIL_RELAY_URL"
	EnvRelayAPIKey = "VIGIL_RELAY_API_KEY"
	EnvLogLevel    = "VIGIL_LOG_LEVEL"
)

const (
	configFile = "config.json"
	envFile    = ".env"

	DefaultListenAddr      = "127.0.0.1:7466"
	DefaultRelayListenAddr = ":7467"
)

// RelayClientConfig points the daemon at a relay
type RelayClientConfig struct {
	URL            string `json:"url,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty"`
}

// RelayServerConfig configures `vigil relay serve`
type RelayServerConfig struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	DBPath     string `json:"db_path,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	// Open serves without a key when none is set (development only)
	Open              bool    `json:"open,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty"`
	// WebhookURL is the gateway email and sms deliveries are posted to.
	// Without it deliveries are only logged.
	WebhookURL      string `json:"webhook_url,omitempty"`
	PruneAfterHours int    `json:"prune_after_hours,omitempty"`
}

// NotifyConfig controls the local warning
type NotifyConfig struct {
	// Command is run with title and body appended, e.g. "notify-send"
	Command        string `json:"command,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ActivityConfig lists paths whose writes count as check-ins
type ActivityConfig struct {
	Paths              []string `json:"paths,omitempty"`
	MinIntervalSeconds int      `json:"min_interval_seconds,omitempty"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `json:"level,omitempty"`
	JSON  bool   `json:"json,omitempty"`
}

// Config represents the vigil configuration. Monitoring settings are not
// part of it; the engine keeps them in the durable store.
type Config struct {
	// Control plane
	ListenAddr string `json:"listen_addr"`
	APIKey     string `json:"api_key"`
	Metrics    bool   `json:"metrics,omitempty"`

	Store kv.Options `json:"store"`

	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`
	GraceSlackSeconds   int `json:"grace_slack_seconds,omitempty"`

	Relay       RelayClientConfig `json:"relay"`
	RelayServer RelayServerConfig `json:"relay_server"`
	Notify      NotifyConfig      `json:"notify"`
	Activity    ActivityConfig    `json:"activity"`
	Log         LogConfig         `json:"log"`

	// Paths (not serialized)
	ConfigDir string `json:"-"`
}

// DefaultConfigDir returns $VIGIL_HOME or ~/.vigil
func DefaultConfigDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, err := homedir.Dir()
	if err != nil {
		return ".vigil"
	}
	return filepath.Join(home, ".vigil")
}

// Default returns a fresh configuration rooted at configDir with a newly
// generated API key.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return &Config{
		ListenAddr: DefaultListenAddr,
		APIKey:     GenerateAPIKey(),
		Store:      kv.DefaultOptions(configDir),
		RelayServer: RelayServerConfig{
			ListenAddr: DefaultRelayListenAddr,
			DBPath:     filepath.Join(configDir, "relay.db"),
		},
		Log:       LogConfig{Level: "info"},
		ConfigDir: configDir,
	}
}

// GenerateAPIKey returns a random key for the control plane or relay
func GenerateAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Load loads configuration from the config directory. A .env file next to
// config.json is loaded into the environment first; variables already set
// win. Environment overrides are then applied.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := loadEnvFile(configDir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(configDir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrNotInitialized
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ConfigDir = configDir
	cfg.applyDefaults()
	cfg.ApplyEnv()
	return &cfg, nil
}

func loadEnvFile(configDir string) error {
	path := filepath.Join(configDir, envFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Store.Path == "" {
		c.Store = kv.DefaultOptions(c.ConfigDir)
	}
	if c.RelayServer.ListenAddr == "" {
		c.RelayServer.ListenAddr = DefaultRelayListenAddr
	}
	if c.RelayServer.DBPath == "" {
		c.RelayServer.DBPath = filepath.Join(c.ConfigDir, "relay.db")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ApplyEnv overrides fields from VIGIL_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvRelayURL); v != "" {
		c.Relay.URL = v
	}
	if v := os.Getenv(EnvRelayAPIKey); v != "" {
		c.Relay.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Exists checks if a config exists
func Exists(configDir string) bool {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	_, err := os.Stat(filepath.Join(configDir, configFile))
	return err == nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir()
	}

	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(c.ConfigDir, configFile), data, 0600)
}

// LockPath is the file guarding against two daemons on one config dir
func (c *Config) LockPath() string {
	return filepath.Join(c.ConfigDir, "vigil.lock")
}

// PollInterval returns the engine tick interval (zero means the default)
func (c *Config) PollInterval() time.Duration {
	return seconds(c.PollIntervalSeconds)
}

// GraceSlack returns the tolerance for a late local warning (zero means the default)
func (c *Config) GraceSlack() time.Duration {
	return seconds(c.GraceSlackSeconds)
}

// RelayTimeout returns the relay client request timeout
func (c *Config) RelayTimeout() time.Duration {
	return seconds(c.Relay.TimeoutSeconds)
}

// NotifyTimeout returns how long the notify command may run
func (c *Config) NotifyTimeout() time.Duration {
	return seconds(c.Notify.TimeoutSeconds)
}

// ActivityInterval returns the minimum gap between activity check-ins
func (c *Config) ActivityInterval() time.Duration {
	return seconds(c.Activity.MinIntervalSeconds)
}

// PruneAfter returns how long finished relay tasks are kept
func (c *Config) PruneAfter() time.Duration {
	if c.RelayServer.PruneAfterHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RelayServer.PruneAfterHours) * time.Hour
}

// HasRelay returns true if a relay URL is configured
func (c *Config) HasRelay() bool {
	return c.Relay.URL != ""
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
