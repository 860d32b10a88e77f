package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging       LoggingConfig       `mapstructure:"logging"`
	Provider      string              `mapstructure:"provider"` // Selected provider: ollama, openai
	Ollama        OllamaConfig        `mapstructure:"ollama"`
	OpenAI        OpenAIConfig        `mapstructure:"openai"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Engagement    EngagementConfig    `mapstructure:"engagement"`
	Theme         string              `mapstructure:"theme"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	URL        string        `mapstructure:"url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"` // For parsing string duration
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"` // For Azure or custom endpoints
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"`
}

// ChatConfig controls how messages are sent to the assistant
type ChatConfig struct {
	SystemPrompt     string `mapstructure:"system_prompt"`
	CancelPolicy     string `mapstructure:"cancel_policy"` // finalize or abandon
	MaxHistoryTokens int    `mapstructure:"max_history_tokens"`
	TokenModel       string `mapstructure:"token_model"`
	HideThinking     bool   `mapstructure:"hide_thinking"`
}

// StorageConfig selects where the chat state is kept between runs
type StorageConfig struct {
	Backend   string       `mapstructure:"backend"` // file, redis, sqlite, memory
	Namespace string       `mapstructure:"namespace"`
	Path      string       `mapstructure:"path"`
	Redis     RedisConfig  `mapstructure:"redis"`
	SQLite    SQLiteConfig `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// NotificationsConfig holds the user's notification preferences
type NotificationsConfig struct {
	SoundEnabled           bool   `mapstructure:"sound_enabled"`
	BrowserNotifications   bool   `mapstructure:"browser_notifications"`
	PageTitleNotifications bool   `mapstructure:"page_title_notifications"`
	BadgeEnabled           bool   `mapstructure:"badge_enabled"`
	PageTitle              string `mapstructure:"page_title"`
}

// TelegramConfig configures the platform notification channel
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// EngagementConfig controls the attention tooltip
type EngagementConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ShowAfter           time.Duration `mapstructure:"-"`
	ShowAfterStr        string        `mapstructure:"show_after"`
	HideAfter           time.Duration `mapstructure:"-"`
	HideAfterStr        string        `mapstructure:"hide_after"`
	FollowUpEvery       time.Duration `mapstructure:"-"`
	FollowUpEveryStr    string        `mapstructure:"follow_up_every"`
	FollowUpCooldown    time.Duration `mapstructure:"-"`
	FollowUpCooldownStr string        `mapstructure:"follow_up_cooldown"`
}

var (
	// Global config instance
	cfg *Config
)

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Load loads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	// Set defaults first
	setDefaults()

	// Configure viper
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./.foliochat") // Check project directory first
		viper.AddConfigPath(filepath.Join(xdgConfigHome, "foliochat"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("FOLIOCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvironmentVariables()

	// A missing settings file is fine; defaults and env cover everything.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Post-process durations (viper doesn't handle time.Duration directly)
	if err := processDurations(loaded); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}

	if err := validate(loaded); err != nil {
		return nil, err
	}

	cfg = loaded
	return cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("provider", "ollama")

	// Ollama defaults
	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "qwen3:latest")
	viper.SetDefault("ollama.timeout", "90s")

	// OpenAI defaults
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("openai.timeout", "60s")

	// Logging defaults
	viper.SetDefault("logging.log_file", "./.foliochat/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")

	// Chat defaults
	viper.SetDefault("chat.system_prompt", "You are the assistant on {{.site}}, a personal portfolio website. Today is {{.date}}. Answer questions about the site owner's work, projects and experience concisely.")
	viper.SetDefault("chat.cancel_policy", "finalize")
	viper.SetDefault("chat.max_history_tokens", 0)
	viper.SetDefault("chat.token_model", "gpt-4")
	viper.SetDefault("chat.hide_thinking", true)

	// Storage defaults
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.namespace", "chat-storage")
	viper.SetDefault("storage.path", "./.foliochat/state.json")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.password", "")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.sqlite.path", "./.foliochat/state.db")

	// Notification defaults
	viper.SetDefault("notifications.sound_enabled", true)
	viper.SetDefault("notifications.browser_notifications", true)
	viper.SetDefault("notifications.page_title_notifications", true)
	viper.SetDefault("notifications.badge_enabled", true)
	viper.SetDefault("notifications.page_title", "Portfolio")

	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.chat_id", 0)

	// Engagement defaults
	viper.SetDefault("engagement.enabled", true)
	viper.SetDefault("engagement.show_after", "3s")
	viper.SetDefault("engagement.hide_after", "8s")
	viper.SetDefault("engagement.follow_up_every", "1m")
	viper.SetDefault("engagement.follow_up_cooldown", "5m")

	viper.SetDefault("theme", "dark")
}

// bindEnvironmentVariables binds environment variables that don't follow
// the FOLIOCHAT_ prefix convention
func bindEnvironmentVariables() {
	viper.BindEnv("openai.api_key", "FOLIOCHAT_OPENAI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("ollama.url", "FOLIOCHAT_OLLAMA_URL", "OLLAMA_HOST")
	viper.BindEnv("telegram.token", "FOLIOCHAT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("storage.redis.addr", "FOLIOCHAT_STORAGE_REDIS_ADDR", "REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "FOLIOCHAT_STORAGE_REDIS_PASSWORD", "REDIS_PASSWORD")
}

// processDurations converts string durations to time.Duration
func processDurations(c *Config) error {
	durations := []struct {
		key  string
		raw  string
		dest *time.Duration
	}{
		{"ollama.timeout", c.Ollama.TimeoutStr, &c.Ollama.Timeout},
		{"openai.timeout", c.OpenAI.TimeoutStr, &c.OpenAI.Timeout},
		{"engagement.show_after", c.Engagement.ShowAfterStr, &c.Engagement.ShowAfter},
		{"engagement.hide_after", c.Engagement.HideAfterStr, &c.Engagement.HideAfter},
		{"engagement.follow_up_every", c.Engagement.FollowUpEveryStr, &c.Engagement.FollowUpEvery},
		{"engagement.follow_up_cooldown", c.Engagement.FollowUpCooldownStr, &c.Engagement.FollowUpCooldown},
	}

	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = parsed
	}
	return nil
}

func validate(c *Config) error {
	switch c.Chat.CancelPolicy {
	case "", "finalize", "abandon":
	default:
		return fmt.Errorf("invalid chat.cancel_policy %q: want finalize or abandon", c.Chat.CancelPolicy)
	}
	switch c.Storage.Backend {
	case "", "file", "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid storage.backend %q", c.Storage.Backend)
	}
	if c.Chat.MaxHistoryTokens < 0 {
		return fmt.Errorf("invalid chat.max_history_tokens %d: must not be negative", c.Chat.MaxHistoryTokens)
	}
	return nil
}

// GetConfigFileUsed returns the path to the config file being used
func GetConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// WriteDefaultConfig writes the current settings to path without
// overwriting an existing file
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write default configuration: %w", err)
	}
	return nil
}

// GetActiveProvider returns the currently active provider name
func (c *Config) GetActiveProvider() string {
	if c.Provider == "" {
		return "ollama" // Default provider
	}
	return c.Provider
}

// GetActiveProviderModel returns the model name for the currently active provider
func (c *Config) GetActiveProviderModel() string {
	switch c.GetActiveProvider() {
	case "openai":
		return c.OpenAI.Model
	default:
		return c.Ollama.Model
	}
}

// GetActiveProviderTimeout returns the request timeout for the active provider
func (c *Config) GetActiveProviderTimeout() time.Duration {
	switch c.GetActiveProvider() {
	case "openai":
		return c.OpenAI.Timeout
	default:
		return c.Ollama.Timeout
	}
}
