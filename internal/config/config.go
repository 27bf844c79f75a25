package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	LogLevel      string `json:"log_level" yaml:"log_level" choices:"debug,info,warn,error"`
	MaxConcurrent int    `json:"max_concurrent" yaml:"max_concurrent"`
	API           struct {
		BaseURL        string `json:"base_url" yaml:"base_url"`
		APIKey         string `json:"api_key" yaml:"api_key" secret:"true"`
		TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	} `json:"api" yaml:"api"`
	Follow struct {
		Transport      string `json:"transport" yaml:"transport" choices:"poll,websocket"`
		PollIntervalMS int    `json:"poll_interval_ms" yaml:"poll_interval_ms"`
		PageSize       int    `json:"page_size" yaml:"page_size"`
	} `json:"follow" yaml:"follow"`
	Cache struct {
		StaleSeconds int `json:"stale_seconds" yaml:"stale_seconds"`
		GCSeconds    int `json:"gc_seconds" yaml:"gc_seconds"`
	} `json:"cache" yaml:"cache"`
	Render struct {
		Model            string `json:"model" yaml:"model"`
		MaxContentTokens int    `json:"max_content_tokens" yaml:"max_content_tokens"`
		RecentActions    int    `json:"recent_actions" yaml:"recent_actions"`
	} `json:"render" yaml:"render"`
	HTTP struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		Listen  string `json:"listen" yaml:"listen"`
	} `json:"http" yaml:"http"`
	Telegram struct {
		Token  string `json:"token" yaml:"token" secret:"true"`
		ChatID int64  `json:"chat_id" yaml:"chat_id"`
	} `json:"telegram" yaml:"telegram"`
	Sync struct {
		Schedule string `json:"schedule" yaml:"schedule"`
	} `json:"sync" yaml:"sync"`
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".deskdev"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.API.BaseURL = "http://localhost:3000"
	cfg.API.TimeoutSeconds = 60
	cfg.Follow.Transport = "poll"
	cfg.Follow.PollIntervalMS = 2000
	cfg.Follow.PageSize = 100
	cfg.Cache.StaleSeconds = 300
	cfg.Cache.GCSeconds = 900
	cfg.Render.Model = "gpt-4o"
	cfg.Render.MaxContentTokens = 250
	cfg.Render.RecentActions = 10
	cfg.HTTP.Listen = "127.0.0.1:8787"
	cfg.Sync.Schedule = "@every 5m"
	return cfg
}

// Timeout is the API request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// PollInterval is the delay between event polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Follow.PollIntervalMS) * time.Millisecond
}

// StaleTime is how long cached server data is served without refetching.
func (c *Config) StaleTime() time.Duration {
	return time.Duration(c.Cache.StaleSeconds) * time.Second
}

// GCTime is how long unused cached data is kept.
func (c *Config) GCTime() time.Duration {
	return time.Duration(c.Cache.GCSeconds) * time.Second
}

// Validate checks values that have a fixed set of choices or a lower bound.
func (c *Config) Validate() error {
	if err := c.checkChoices(); err != nil {
		return err
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// unmarshal decodes YAML or JSON by extension. JSON files may carry
// comments and trailing commas; SetValue rewrites them without comments.
func unmarshal(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(jsonc.ToJSON(data), v)
}

func marshal(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func Load(path string) (*Config, error) {
	cfg := Defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if baseURL := os.Getenv("DESKDEV_API_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if apiKey := os.Getenv("DESKDEV_API_KEY"); apiKey != "" {
		cfg.API.APIKey = apiKey
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

// Save writes cfg to path atomically, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// GetValue returns the effective value under a dotted key. The file is
// created with defaults when missing.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Get(key)
}

// SetValue stores raw under a dotted key in an existing config file. raw is
// parsed as the key's type and the resulting config must validate.
func SetValue(path, key, raw string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// m keeps keys this version does not know through the rewrite
	var m map[string]any
	cfg := Defaults()
	if err := unmarshal(path, data, &m); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := unmarshal(path, data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	if err := cfg.Set(key, raw); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	v, err := cfg.Get(key)
	if err != nil {
		return err
	}
	setIn(m, key, v)
	out, err := marshal(path, m)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, out)
}
