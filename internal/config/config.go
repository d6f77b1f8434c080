package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultPublicURL        = "http://localhost:8080"
	DefaultLinkMode         = LinkModeRegistry
	DefaultLinkTTL          = "24h"
	DefaultReapInterval     = "1m"
	DefaultChunkSize        = 512 * 1024
	DefaultMaxUploadBytes   = 50 * 1024 * 1024
	DefaultProgressInterval = "5s"
	DefaultPollTimeout      = 30
	DefaultUserAgent        = "tglink/1.0"

	// SessionConcurrency is the number of leeches a single chat may run at once.
	SessionConcurrency = 1
)

const (
	LinkModeRegistry = "registry"
	LinkModeSigned   = "signed"
)

type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
	Links    LinksConfig    `toml:"links" yaml:"links"`
	Leech    LeechConfig    `toml:"leech" yaml:"leech"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	File   string `toml:"file" yaml:"file"`
}

type ServerConfig struct {
	Addr      string `toml:"addr" yaml:"addr" validate:"required"`
	PublicURL string `toml:"public_url" yaml:"public_url" validate:"required,url"`
}

type TelegramConfig struct {
	BotToken     string  `toml:"bot_token" yaml:"bot_token" validate:"required"`
	APIEndpoint  string  `toml:"api_endpoint" yaml:"api_endpoint"`
	AllowedUsers []int64 `toml:"allowed_users" yaml:"allowed_users"`
	PollTimeout  int     `toml:"poll_timeout" yaml:"poll_timeout" validate:"gte=0"`
}

type LinksConfig struct {
	Mode         string `toml:"mode" yaml:"mode" validate:"oneof=registry signed"`
	TTL          string `toml:"ttl" yaml:"ttl" validate:"required"`
	ReapInterval string `toml:"reap_interval" yaml:"reap_interval" validate:"required"`
	Secret       string `toml:"secret" yaml:"secret" validate:"required_if=Mode signed"`
	ChunkSize    int    `toml:"chunk_size" yaml:"chunk_size" validate:"gt=0"`
}

// TTLDuration returns the parsed link lifetime.
func (c LinksConfig) TTLDuration() time.Duration {
	return mustDuration(c.TTL, DefaultLinkTTL)
}

// ReapIntervalDuration returns the parsed reaper tick.
func (c LinksConfig) ReapIntervalDuration() time.Duration {
	return mustDuration(c.ReapInterval, DefaultReapInterval)
}

type LeechConfig struct {
	MaxUploadBytes        int64  `toml:"max_upload_bytes" yaml:"max_upload_bytes" validate:"gt=0"`
	ProgressInterval      string `toml:"progress_interval" yaml:"progress_interval" validate:"required"`
	UserAgent             string `toml:"user_agent" yaml:"user_agent"`
	ResponseHeaderTimeout string `toml:"response_header_timeout" yaml:"response_header_timeout"`
}

// ProgressIntervalDuration returns the minimum gap between progress edits.
func (c LeechConfig) ProgressIntervalDuration() time.Duration {
	return mustDuration(c.ProgressInterval, DefaultProgressInterval)
}

// ResponseHeaderTimeoutDuration bounds the wait for upstream headers; zero disables it.
func (c LeechConfig) ResponseHeaderTimeoutDuration() time.Duration {
	if strings.TrimSpace(c.ResponseHeaderTimeout) == "" {
		return 0
	}
	return mustDuration(c.ResponseHeaderTimeout, "0s")
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:      DefaultHTTPAddr,
			PublicURL: DefaultPublicURL,
		},
		Telegram: TelegramConfig{
			PollTimeout: DefaultPollTimeout,
		},
		Links: LinksConfig{
			Mode:         DefaultLinkMode,
			TTL:          DefaultLinkTTL,
			ReapInterval: DefaultReapInterval,
			ChunkSize:    DefaultChunkSize,
		},
		Leech: LeechConfig{
			MaxUploadBytes:   DefaultMaxUploadBytes,
			ProgressInterval: DefaultProgressInterval,
			UserAgent:        DefaultUserAgent,
		},
	}
}

// Load reads the config file at path (TOML, or YAML by extension), then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
		return nil
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
		return nil
	}
}

func applyEnv(cfg *Config) {
	if value := os.Getenv("BOT_TOKEN"); value != "" {
		cfg.Telegram.BotToken = value
	}
	if value := os.Getenv("PORT"); value != "" {
		cfg.Server.Addr = ":" + value
	}
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		cfg.Server.Addr = value
	}
	if value := os.Getenv("RENDER_EXTERNAL_URL"); value != "" {
		cfg.Server.PublicURL = value
	}
	if value := os.Getenv("PUBLIC_URL"); value != "" {
		cfg.Server.PublicURL = value
	}
	if value := os.Getenv("LINK_SECRET"); value != "" {
		cfg.Links.Secret = value
	}
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		cfg.Log.Level = value
	}
	cfg.Server.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/")
}

var validate = validator.New()

// Validate checks required fields and duration syntax.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	durations := map[string]string{
		"links.ttl":               c.Links.TTL,
		"links.reap_interval":     c.Links.ReapInterval,
		"leech.progress_interval": c.Leech.ProgressInterval,
	}
	if strings.TrimSpace(c.Leech.ResponseHeaderTimeout) != "" {
		durations["leech.response_header_timeout"] = c.Leech.ResponseHeaderTimeout
	}
	for key, raw := range durations {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: must not be negative", key)
		}
	}
	if c.Links.TTLDuration() <= 0 {
		return fmt.Errorf("invalid links.ttl: must be positive")
	}
	if c.Links.ReapIntervalDuration() < time.Second {
		return fmt.Errorf("invalid links.reap_interval: must be at least 1s")
	}
	return nil
}

func mustDuration(raw, fallback string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
