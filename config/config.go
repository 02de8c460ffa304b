// Package config handles configuration loading and saving.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perchbot/perch/logger"
)

const (
	configFileName = "config.yaml"
	configDirName  = ".perch"
	configDirEnv   = "PERCH_CONFIG_DIR"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Channels *ChannelsConfig `json:"channels" yaml:"channels"`
	Webhook  WebhookConfig   `json:"webhook,omitempty" yaml:"webhook,omitempty"`
	Guard    GuardConfig     `json:"guard,omitempty" yaml:"guard,omitempty"`
	Queue    QueueConfig     `json:"queue,omitempty" yaml:"queue,omitempty"`
	Logging  LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// ChannelsConfig contains channel adapter configurations.
type ChannelsConfig struct {
	Slack      *SlackChannelConfig      `json:"slack,omitempty" yaml:"slack,omitempty"`
	Mattermost *MattermostChannelConfig `json:"mattermost,omitempty" yaml:"mattermost,omitempty"`
}

// SlackChannelConfig contains Slack adapter configuration.
type SlackChannelConfig struct {
	BotToken     string   `json:"botToken" yaml:"botToken"`                         // xoxb- token
	AppToken     string   `json:"appToken,omitempty" yaml:"appToken,omitempty"`     // xapp- token; empty falls back to polling
	ChannelID    string   `json:"channelId,omitempty" yaml:"channelId,omitempty"`   // restrict to one channel; empty = all joined channels
	AllowedUsers []string `json:"allowedUsers" yaml:"allowedUsers"`                 // empty = deny all, "*" = allow all
}

// MattermostChannelConfig contains Mattermost adapter configuration.
type MattermostChannelConfig struct {
	BaseURL                  string   `json:"baseUrl" yaml:"baseUrl"`
	BotToken                 string   `json:"botToken" yaml:"botToken"`
	AdminToken               string   `json:"adminToken,omitempty" yaml:"adminToken,omitempty"`
	ChannelID                string   `json:"channelId,omitempty" yaml:"channelId,omitempty"` // required for the polling fallback
	AllowedUsers             []string `json:"allowedUsers" yaml:"allowedUsers"`                                             // user ids; empty = deny all, "*" = allow all
	ThreadReplies            bool     `json:"threadReplies,omitempty" yaml:"threadReplies,omitempty"`
	MentionOnly              bool     `json:"mentionOnly,omitempty" yaml:"mentionOnly,omitempty"`
	ThreadTTLMinutes         int      `json:"threadTtlMinutes,omitempty" yaml:"threadTtlMinutes,omitempty"`
	GroupReplyAllowedSenders []string `json:"groupReplyAllowedSenders,omitempty" yaml:"groupReplyAllowedSenders,omitempty"` // user ids that bypass mention gating
	SyncProfile              bool     `json:"syncProfile,omitempty" yaml:"syncProfile,omitempty"`
	AieosPath                string   `json:"aieosPath,omitempty" yaml:"aieosPath,omitempty"`
	AvatarURL                string   `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	AlertsIncomingWebhookURL string   `json:"alertsIncomingWebhookUrl,omitempty" yaml:"alertsIncomingWebhookUrl,omitempty"`
}

// WebhookConfig contains webhook listener configuration.
type WebhookConfig struct {
	Port          int    `json:"port,omitempty" yaml:"port,omitempty"` // 0 disables the listener
	SigningSecret string `json:"signingSecret,omitempty" yaml:"signingSecret,omitempty"`
}

// GuardConfig contains prompt guard configuration.
type GuardConfig struct {
	Action        string   `json:"action,omitempty" yaml:"action,omitempty"` // warn (default) or block
	ExtraPatterns []string `json:"extraPatterns,omitempty" yaml:"extraPatterns,omitempty"`
}

// QueueConfig contains message queue configuration.
type QueueConfig struct {
	Size int `json:"size,omitempty" yaml:"size,omitempty"` // defaults to 256
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stdout
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
}

// ConfigDir returns the directory holding config.yaml.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if dir := strings.TrimSpace(os.Getenv(configDirEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// Load reads config.yaml from the config dir, applying defaults.
// A missing file yields the default config.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config back to config.yaml.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// BuildLoggerConfig converts the logging section into a logger.Config.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
	}
}

// SlackConfig returns the Slack section, or nil when not configured.
func (c *Config) SlackConfig() *SlackChannelConfig {
	if c.Channels == nil {
		return nil
	}
	return c.Channels.Slack
}

// MattermostConfig returns the Mattermost section, or nil when not configured.
func (c *Config) MattermostConfig() *MattermostChannelConfig {
	if c.Channels == nil {
		return nil
	}
	return c.Channels.Mattermost
}
