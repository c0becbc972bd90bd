package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanapi"
	"github.com/tinytelemetry/fingervote/internal/scanpoll"
)

const (
	defaultBackendURL     = "http://127.0.0.1:8000"
	defaultRequestTimeout = 10 * time.Second
	defaultLogLevel       = "info"
)

// appConfig holds everything the subcommands read from flags, environment
// and the config file.
type appConfig struct {
	BackendURL      string        `mapstructure:"backend-url"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`
	RedirectDelay   time.Duration `mapstructure:"redirect-delay"`
	VerifiedDelay   time.Duration `mapstructure:"verified-delay"`
	MaxWait         time.Duration `mapstructure:"max-wait"`
	Simulated       bool          `mapstructure:"simulated"`
	SimulatedTick   time.Duration `mapstructure:"simulated-tick"`
	TestFingerprint string        `mapstructure:"test-fingerprint"`
	SessionTimeout  time.Duration `mapstructure:"session-timeout"`
	DBPath          string        `mapstructure:"db-path"`
	JournalPath     string        `mapstructure:"journal-path"`
	LogPath         string        `mapstructure:"log-path"`
	LogLevel        string        `mapstructure:"log-level"`
	Paths           scanapi.Paths `mapstructure:"paths"`
	ConfigPath      string        `mapstructure:"-"`
}

// boundFlags are command-line flags that override config keys of the
// same name when set.
var boundFlags = []string{"backend-url", "log-level", "simulated", "max-wait", "poll-interval"}

// loadEnvFile loads a dotenv file into the process environment. Variables
// already set win. A missing default .env is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDataDir := filepath.Join(home, ".local", "share", "fingervote")
	defaultStateDir := filepath.Join(home, ".local", "state", "fingervote")

	v := viper.New()
	v.SetEnvPrefix("FINGERVOTE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("backend-url", defaultBackendURL)
	v.SetDefault("request-timeout", defaultRequestTimeout)
	v.SetDefault("poll-interval", model.DefaultPollInterval)
	v.SetDefault("redirect-delay", model.DefaultRedirectDelay)
	v.SetDefault("verified-delay", model.DefaultVerifiedDelay)
	v.SetDefault("max-wait", model.DefaultMaxWait)
	v.SetDefault("simulated", false)
	v.SetDefault("simulated-tick", model.DefaultSimulatedTick)
	v.SetDefault("test-fingerprint", model.DefaultTestFingerprintID)
	v.SetDefault("session-timeout", model.DefaultSessionTimeout)
	v.SetDefault("db-path", filepath.Join(defaultDataDir, "fingervote.duckdb"))
	v.SetDefault("journal-path", filepath.Join(defaultDataDir, "journal.jsonl"))
	v.SetDefault("log-path", filepath.Join(defaultStateDir, "fingervote.log"))
	v.SetDefault("log-level", defaultLogLevel)

	paths := scanapi.DefaultPaths()
	v.SetDefault("paths.trigger-scan", paths.TriggerScan)
	v.SetDefault("paths.scan-result", paths.ScanResult)
	v.SetDefault("paths.verify", paths.Verify)
	v.SetDefault("paths.latest-fingerprint", paths.LatestFingerprint)
	v.SetDefault("paths.pending-templates", paths.PendingTemplates)
	v.SetDefault("paths.clear-session", paths.ClearSession)

	if flags != nil {
		for _, name := range boundFlags {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return cfg, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "fingervote", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	u, err := url.Parse(cfg.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, fmt.Errorf("invalid backend-url: %q", cfg.BackendURL)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("invalid poll-interval: %s", cfg.PollInterval)
	}
	if cfg.SessionTimeout <= 0 {
		return cfg, fmt.Errorf("invalid session-timeout: %s", cfg.SessionTimeout)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("invalid log-level: %q", cfg.LogLevel)
	}

	// Expand ~ in file paths
	for _, p := range []*string{&cfg.DBPath, &cfg.JournalPath, &cfg.LogPath} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	return cfg, nil
}

// scanConfig maps the config onto the scan flow settings.
func (c appConfig) scanConfig() scanpoll.Config {
	return scanpoll.Config{
		PollInterval:      c.PollInterval,
		RedirectDelay:     c.RedirectDelay,
		VerifiedDelay:     c.VerifiedDelay,
		MaxWait:           c.MaxWait,
		SimulatedTick:     c.SimulatedTick,
		TestFingerprintID: c.TestFingerprint,
	}
}

// newClient builds the backend client from the config.
func (c appConfig) newClient() (*scanapi.Client, error) {
	return scanapi.New(c.BackendURL,
		scanapi.WithTimeout(c.RequestTimeout),
		scanapi.WithPaths(c.Paths),
	)
}
