package config

import (
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Port              int           `mapstructure:"port" yaml:"port"`
	AutoStart         bool          `mapstructure:"auto_start" yaml:"auto_start"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxLineBytes      int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	StatusAddr        string        `mapstructure:"status_addr" yaml:"status_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	Console           bool          `mapstructure:"console" yaml:"console"`
	Rooms             []RoomSeed    `mapstructure:"rooms" yaml:"rooms"`
}

// RoomSeed is a room registered at startup.
type RoomSeed struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Name     string `mapstructure:"name" yaml:"name"`
	Host     string `mapstructure:"host" yaml:"host"`
	Capacity int    `mapstructure:"capacity" yaml:"capacity"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Port:              1234,
		LogLevel:          "info",
		MaxLineBytes:      64 * 1024,
		WriteTimeout:      5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Console:           true,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are not merged; callers set them explicitly.
func (c *Config) UpdateFrom(other Config) {
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxLineBytes != 0 {
		c.MaxLineBytes = other.MaxLineBytes
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.StatusAddr != "" {
		c.StatusAddr = other.StatusAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if len(other.Rooms) > 0 {
		c.Rooms = other.Rooms
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxLineBytes < 0 {
		return fmt.Errorf("invalid max_line_bytes %d", c.MaxLineBytes)
	}
	for i, r := range c.Rooms {
		if r.Capacity < 1 {
			return fmt.Errorf("rooms[%d]: capacity must be at least 1", i)
		}
	}
	return nil
}
