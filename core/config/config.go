package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram transport settings shared by all hosted bots.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
	File   string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
	// BufferKB sizes each sink's write buffer; 0 -> 64.
	BufferKB int `yaml:"buffer_kb" envconfig:"LOG_BUFFER_KB"`
	// FlushIntervalMS bounds how long a record may sit buffered before
	// being flushed to the sinks; 0 -> 500.
	FlushIntervalMS int `yaml:"flush_interval_ms" envconfig:"LOG_FLUSH_INTERVAL_MS"`
}

// ConversationConfig tunes engine policy knobs.
type ConversationConfig struct {
	// AutoAdvance controls the default transition applied when a handler
	// returns no state directive while a conversation is active. When nil
	// the engine default (advance to the next state) is used.
	AutoAdvance *bool `yaml:"auto_advance" envconfig:"CONV_AUTO_ADVANCE"`
}

// SenderConfig tunes the outbound dispatcher.
type SenderConfig struct {
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram"`
	Logging      LoggingConfig      `yaml:"logging"`
	Conversation ConversationConfig `yaml:"conversation"`
	Sender       SenderConfig       `yaml:"sender"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Sender.QueueSize < 0 {
		return fmt.Errorf("sender.queue_size must be >= 0")
	}
	if cfg.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	if cfg.Sender.RetryBackoffMS < 0 {
		return fmt.Errorf("sender.retry_backoff_ms must be >= 0")
	}
	if cfg.Logging.BufferKB < 0 {
		return fmt.Errorf("logging.buffer_kb must be >= 0")
	}
	if cfg.Logging.FlushIntervalMS < 0 {
		return fmt.Errorf("logging.flush_interval_ms must be >= 0")
	}
	return nil
}

// AutoAdvanceEnabled resolves the auto-advance policy with its default.
func (c ConversationConfig) AutoAdvanceEnabled() bool {
	if c.AutoAdvance == nil {
		return true
	}
	return *c.AutoAdvance
}
