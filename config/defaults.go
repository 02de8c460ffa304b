package config

const (
	defaultQueueSize   = 256
	defaultGuardAction = "warn"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Channels: &ChannelsConfig{},
		Guard: GuardConfig{
			Action: defaultGuardAction,
		},
		Queue: QueueConfig{
			Size: defaultQueueSize,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Stdout:  true,
		File:    "logs/perch.log",
	}
}

func (c *Config) applyDefaults() {
	if c.Channels == nil {
		c.Channels = &ChannelsConfig{}
	}
	if c.Channels.Slack != nil && c.Channels.Slack.AllowedUsers == nil {
		c.Channels.Slack.AllowedUsers = []string{}
	}
	if c.Channels.Mattermost != nil && c.Channels.Mattermost.AllowedUsers == nil {
		c.Channels.Mattermost.AllowedUsers = []string{}
	}

	if c.Guard.Action == "" {
		c.Guard.Action = defaultGuardAction
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = defaultQueueSize
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}

	hasAny := c.Logging.Level != "" || c.Logging.File != "" || c.Logging.Stdout
	if c.Logging.Enabled == nil && hasAny {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.File == "" {
		c.Logging.File = def.File
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = def.Stdout
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}
