package config

import (
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "Asia/Tokyo"
	defaultSourceURL = "https://www.pref.miyagi.jp/life/4/15/49/index.html"

	configPathEnv     = "RIVERWATCH_CONFIG"
	sourceURLEnv      = "RIVERWATCH_SOURCE_URL"
	outputKindEnv     = "RIVERWATCH_OUTPUT"
	ledgerPathEnv     = "RIVERWATCH_LEDGER"
	logLevelEnv       = "RIVERWATCH_LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Source        SourceConfig       `yaml:"source"`
	State         StateConfig        `yaml:"state"`
	Output        OutputConfig       `yaml:"output"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Timezone      string             `yaml:"timezone"`

	location *time.Location `yaml:"-"`
}

// SourceConfig describes the page to watch and how to request it.
type SourceConfig struct {
	URL            string        `yaml:"url"`
	UserAgent      string        `yaml:"userAgent"`
	AcceptLanguage string        `yaml:"acceptLanguage"`
	Timeout        time.Duration `yaml:"timeout"`
}

// StateConfig locates the watermark metadata file.
type StateConfig struct {
	Path           string        `yaml:"path"`
	HistoryLimit   int           `yaml:"historyLimit"`
	LockStaleAfter time.Duration `yaml:"lockStaleAfter"`
}

// OutputConfig selects the artifact renderer and where it writes.
type OutputConfig struct {
	Kind       string `yaml:"kind"`
	Dir        string `yaml:"dir"`
	NoticeFile string `yaml:"noticeFile"`
}

// LedgerConfig enables the SQLite run ledger when Path is set.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Location resolves the configured timezone, falling back to Asia/Tokyo.
func (c Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	if loc, err := time.LoadLocation(defaultTimezone); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

// Load reads YAML configuration from the env-configured path (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit file path; an empty path means defaults only.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func readFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(sourceURLEnv); v != "" {
		c.Source.URL = v
	}

	if v := os.Getenv(outputKindEnv); v != "" {
		c.Output.Kind = v
	}

	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		c.Timezone = defaultTimezone
		c.location = nil
		return
	}
	c.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Source.URL != "" {
		base.Source.URL = override.Source.URL
	}
	if override.Source.UserAgent != "" {
		base.Source.UserAgent = override.Source.UserAgent
	}
	if override.Source.AcceptLanguage != "" {
		base.Source.AcceptLanguage = override.Source.AcceptLanguage
	}
	if override.Source.Timeout > 0 {
		base.Source.Timeout = override.Source.Timeout
	}

	if override.State.Path != "" {
		base.State.Path = override.State.Path
	}
	if override.State.HistoryLimit > 0 {
		base.State.HistoryLimit = override.State.HistoryLimit
	}
	if override.State.LockStaleAfter > 0 {
		base.State.LockStaleAfter = override.State.LockStaleAfter
	}

	if override.Output.Kind != "" {
		base.Output.Kind = override.Output.Kind
	}
	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if override.Output.NoticeFile != "" {
		base.Output.NoticeFile = override.Output.NoticeFile
	}

	if override.Ledger.Path != "" {
		base.Ledger.Path = override.Ledger.Path
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Timezone != "" {
		base.Timezone = override.Timezone
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Source: SourceConfig{
			URL:            defaultSourceURL,
			UserAgent:      "RiverWatch/1.0 (+river bulletin monitor)",
			AcceptLanguage: "ja,en-US;q=0.9,en;q=0.8",
			Timeout:        30 * time.Second,
		},
		State: StateConfig{
			Path:           "miyagi_river_metadata.json",
			HistoryLimit:   10,
			LockStaleAfter: time.Hour,
		},
		Output: OutputConfig{
			Kind:       "csv",
			Dir:        ".",
			NoticeFile: "river_notification.txt",
		},
		Logging:  LoggingConfig{Level: "info"},
		Timezone: defaultTimezone,
	}
}
