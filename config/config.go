package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultRunAddress  = ":8080"
	defaultAuthAddress = ":5000"
	defaultLogLevel    = "info"
	defaultTokenKey    = "f53ac685bbceebd75043e6be2e06ee07"
	defaultClientURL   = "http://localhost:3000"

	// ConfigPathEnvVar names the optional YAML config file
	ConfigPathEnvVar = "CONFIG_PATH"
)

// feed backends
const (
	FeedMemory   = "memory"
	FeedPostgres = "postgres"
	FeedAMQP     = "amqp"
)

// identity backends
const (
	IdentityToolkit = "toolkit"
	IdentityLocal   = "local"
)

type FeedConfig struct {
	Backend    string `koanf:"backend"`
	AMQPURL    string `koanf:"amqp_url"`
	BufferSize int    `koanf:"buffer_size"`
}

type IdentityConfig struct {
	Backend string `koanf:"backend"`
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type GoogleConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
}

type TimeoutConfig struct {
	Fetch  time.Duration `koanf:"fetch"`
	Update time.Duration `koanf:"update"`
}

type Config struct {
	RunAddress        string         `koanf:"run_address"`
	AuthAddress       string         `koanf:"auth_address"`
	DatabaseDSN       string         `koanf:"database_dsn"`
	LogLevel          string         `koanf:"log_level"`
	TokenKey          string         `koanf:"token_key"`
	ClientURL         string         `koanf:"client_url"`
	Environment       string         `koanf:"environment"`
	Feed              FeedConfig     `koanf:"feed"`
	Identity          IdentityConfig `koanf:"identity"`
	Google            GoogleConfig   `koanf:"google"`
	Timeouts          TimeoutConfig  `koanf:"timeouts"`
	ResyncInterval    time.Duration  `koanf:"resync_interval"`
	ReconcileInterval time.Duration  `koanf:"reconcile_interval"`
	ReconcileWindow   time.Duration  `koanf:"reconcile_window"`
	AutoCompleteAfter time.Duration  `koanf:"auto_complete_after"`
}

var (
	once      sync.Once
	singleton *Config
	loadErr   error
)

// envKeys maps environment variables to config keys
var envKeys = map[string]string{
	"RUN_ADDRESS":          "run_address",
	"AUTH_ADDRESS":         "auth_address",
	"DATABASE_URI":         "database_dsn",
	"LOG_LEVEL":            "log_level",
	"AUTH_TOKEN_KEY":       "token_key",
	"CLIENT_URL":           "client_url",
	"ENVIRONMENT":          "environment",
	"FEED_BACKEND":         "feed.backend",
	"AMQP_URL":             "feed.amqp_url",
	"FEED_BUFFER_SIZE":     "feed.buffer_size",
	"IDENTITY_BACKEND":     "identity.backend",
	"FIREBASE_API_KEY":     "identity.api_key",
	"IDENTITY_BASE_URL":    "identity.base_url",
	"GOOGLE_CLIENT_ID":     "google.client_id",
	"GOOGLE_CLIENT_SECRET": "google.client_secret",
	"GOOGLE_REDIRECT_URI":  "google.redirect_uri",
	"FETCH_TIMEOUT":        "timeouts.fetch",
	"UPDATE_TIMEOUT":       "timeouts.update",
	"RESYNC_INTERVAL":      "resync_interval",
	"RECONCILE_INTERVAL":   "reconcile_interval",
	"RECONCILE_WINDOW":     "reconcile_window",
	"AUTO_COMPLETE_AFTER":  "auto_complete_after",
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"a":        "run_address",
	"auth":     "auth_address",
	"d":        "database_dsn",
	"l":        "log_level",
	"feed":     "feed.backend",
	"identity": "identity.backend",
}

func defaultConfig() Config {
	return Config{
		RunAddress:  defaultRunAddress,
		AuthAddress: defaultAuthAddress,
		LogLevel:    defaultLogLevel,
		TokenKey:    defaultTokenKey,
		ClientURL:   defaultClientURL,
		Environment: "development",
		Feed: FeedConfig{
			Backend:    FeedMemory,
			BufferSize: 64,
		},
		Identity: IdentityConfig{
			Backend: IdentityLocal,
		},
		Timeouts: TimeoutConfig{
			Fetch:  15 * time.Second,
			Update: 10 * time.Second,
		},
		ResyncInterval:    30 * time.Second,
		ReconcileInterval: time.Minute,
		ReconcileWindow:   24 * time.Hour,
		AutoCompleteAfter: 3 * time.Hour,
	}
}

// New returns new Config. It reads defaults, config file, environment variables
// and command line only once.
func New() (*Config, error) {
	once.Do(func() {
		singleton, loadErr = Load(os.Args[1:])
	})

	return singleton, loadErr
}

// Load builds a Config from defaults, the optional YAML file, environment
// variables and args, each layer overriding the previous one.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tableorder", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv(ConfigPathEnvVar), "path to YAML config file")
	fs.String("a", defaultRunAddress, "server address")
	fs.String("auth", defaultAuthAddress, "auth server address")
	fs.String("d", "", "database DSN")
	fs.String("l", defaultLogLevel, "log level")
	fs.String("feed", FeedMemory, "change feed backend: memory, postgres or amqp")
	fs.String("identity", IdentityLocal, "identity backend: local or toolkit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if *configPath != "" {
		if err := k.Load(file.Provider(*configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", *configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		// unknown variables are skipped
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// only flags given explicitly override
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || flagErr != nil {
			return
		}
		flagErr = k.Set(key, f.Value.String())
	})
	if flagErr != nil {
		return nil, fmt.Errorf("apply flags: %w", flagErr)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Production reports whether the process runs in production
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// TokenKeyBytes returns the decoded session token key
func (c *Config) TokenKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("token key: %w", err)
	}
	return key, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	switch c.Feed.Backend {
	case FeedMemory, FeedPostgres:
	case FeedAMQP:
		if c.Feed.AMQPURL == "" {
			errs = append(errs, errors.New("amqp feed requires AMQP_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feed backend %q", c.Feed.Backend))
	}

	switch c.Identity.Backend {
	case IdentityLocal:
	case IdentityToolkit:
		if c.Identity.APIKey == "" {
			errs = append(errs, errors.New("toolkit identity requires FIREBASE_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown identity backend %q", c.Identity.Backend))
	}

	if key, err := c.TokenKeyBytes(); err != nil {
		errs = append(errs, err)
	} else if len(key) < 16 {
		errs = append(errs, errors.New("token key must be at least 16 bytes"))
	}
	if c.Production() && c.TokenKey == defaultTokenKey {
		errs = append(errs, errors.New("default token key is not allowed in production"))
	}

	if c.Timeouts.Fetch <= 0 || c.Timeouts.Update <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.ReconcileWindow <= 0 {
		errs = append(errs, errors.New("reconcile window must be positive"))
	}
	if c.AutoCompleteAfter < 0 {
		errs = append(errs, errors.New("auto complete delay must not be negative"))
	}

	return errors.Join(errs...)
}
