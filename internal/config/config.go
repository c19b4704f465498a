package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	StatusAddr      string        `mapstructure:"status_addr" yaml:"status_addr" validate:"omitempty,hostname_port"`
	MaxSessions     int           `mapstructure:"max_sessions" yaml:"max_sessions" validate:"min=1"`
	MaxFrameBytes   int           `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes" validate:"min=64"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file"`
	JournalPath     string        `mapstructure:"journal_path" yaml:"journal_path"`
}

// Default returns configuration matching the classic deployment: every
// interface on port 5002, four concurrent sessions.
func Default() Config {
	return Config{
		Addr:            "0.0.0.0:5002",
		MaxSessions:     4,
		MaxFrameBytes:   64 << 10,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.StatusAddr != "" {
		c.StatusAddr = other.StatusAddr
	}
	if other.MaxSessions != 0 {
		c.MaxSessions = other.MaxSessions
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
	if other.ReadTimeout != 0 {
		c.ReadTimeout = other.ReadTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.JournalPath != "" {
		c.JournalPath = other.JournalPath
	}
}
