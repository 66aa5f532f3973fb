package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL      = "http://127.0.0.1:8000"
	DefaultRefreshInterval = 10 * time.Second
	DefaultListenAddr      = ":8080"
	DefaultScanPerMinute   = 6
)

type Config struct {
	BackendURL       string
	RefreshInterval  time.Duration
	ListenAddr       string
	TelegramToken    string
	AuthorizedUserID int64
	LogLevel         string
	ScanPerMinute    int
}

// fileConfig mirrors the optional YAML file. Zero values mean "not set".
type fileConfig struct {
	BackendURL        string `yaml:"backend_url"`
	RefreshIntervalMS int    `yaml:"refresh_interval_ms"`
	ListenAddr        string `yaml:"listen_addr"`
	Telegram          struct {
		Token            string `yaml:"token"`
		AuthorizedUserID int64  `yaml:"authorized_user_id"`
	} `yaml:"telegram"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	ScanPerMinute int `yaml:"scan_per_minute"`
}

func Default() *Config {
	return &Config{
		BackendURL:      DefaultBackendURL,
		RefreshInterval: DefaultRefreshInterval,
		ListenAddr:      DefaultListenAddr,
		LogLevel:        "info",
		ScanPerMinute:   DefaultScanPerMinute,
	}
}

// Load builds the process configuration: defaults, then the YAML file at path
// (or $DASHBOARD_CONFIG), then environment variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, using environment variables")
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("DASHBOARD_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.BackendURL != "" {
		c.BackendURL = fc.BackendURL
	}
	if fc.RefreshIntervalMS > 0 {
		c.RefreshInterval = time.Duration(fc.RefreshIntervalMS) * time.Millisecond
	}
	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.Telegram.Token != "" {
		c.TelegramToken = fc.Telegram.Token
	}
	if fc.Telegram.AuthorizedUserID != 0 {
		c.AuthorizedUserID = fc.Telegram.AuthorizedUserID
	}
	if fc.Logging.Level != "" {
		c.LogLevel = fc.Logging.Level
	}
	if fc.ScanPerMinute > 0 {
		c.ScanPerMinute = fc.ScanPerMinute
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.BackendURL = v
	}

	if v := os.Getenv("REFRESH_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid REFRESH_INTERVAL_MS %q", v)
		}
		c.RefreshInterval = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.TelegramToken = v
	}

	if v := os.Getenv("AUTHORIZED_USER_ID"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid AUTHORIZED_USER_ID %q", v)
		}
		c.AuthorizedUserID = userID
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv("SCAN_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid SCAN_RATE_PER_MINUTE %q", v)
		}
		c.ScanPerMinute = n
	}
	return nil
}

func (c *Config) Validate() error {
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	if c.BackendURL == "" {
		return fmt.Errorf("backend url is empty")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.TelegramToken != "" && c.AuthorizedUserID == 0 {
		return fmt.Errorf("AUTHORIZED_USER_ID is required when the Telegram bot is enabled")
	}
	return nil
}

// TelegramEnabled reports whether the Telegram surface should be started.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}
