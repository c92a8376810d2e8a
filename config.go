package tpool

import (
	"errors"
	"time"

	"github.com/creasty/defaults"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type PoolConfig struct {
	// Workers fixes the number of worker threads. Zero means LogicalCPUCount().
	Workers int `json:"workers" mapstructure:"workers"`
	// Active is the initial number of active workers. Zero means all of them.
	Active int `json:"active" mapstructure:"active"`

	LockOSThread    bool          `json:"lock_os_thread" mapstructure:"lock_os_thread"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" default:"5s"`
	StatsInterval   time.Duration `json:"stats_interval" mapstructure:"stats_interval"`

	MetricsNamespace string `json:"metrics_namespace" mapstructure:"metrics_namespace" default:"tpool"`
	// Registerer enables the Prometheus collectors when set.
	Registerer prometheus.Registerer `json:"-" mapstructure:"-"`

	// Logger overrides Log when set.
	Logger *zap.Logger `json:"-" mapstructure:"-"`
	Log    LogConfig   `json:"log" mapstructure:"log"`
}

type LogConfig struct {
	AppFile    string `json:"app_file" mapstructure:"app_file"`
	ErrorFile  string `json:"error_file" mapstructure:"error_file"`
	Level      string `json:"level" mapstructure:"level" default:"info"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size" default:"50"` // MB
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" default:"30"`
	MaxAge     int    `json:"max_age" mapstructure:"max_age" default:"7"` // days
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		LockOSThread:     true,
		ShutdownTimeout:  5 * time.Second,
		MetricsNamespace: "tpool",
		Log: LogConfig{
			Level:      "info",
			MaxSize:    50, // MB
			MaxBackups: 30,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

func DefaultFileLogConfig() LogConfig {
	cfg := DefaultPoolConfig().Log
	cfg.AppFile = "./logs/tpool.log"
	cfg.ErrorFile = "./logs/error.log"
	return cfg
}

func (c PoolConfig) Validate() error {
	switch {
	case c.Workers < 0:
		return errors.New("tpool: workers must not be negative")
	case c.Active < 0:
		return errors.New("tpool: active must not be negative")
	case c.Workers > 0 && c.Active > c.Workers:
		return errors.New("tpool: active must not exceed workers")
	case c.ShutdownTimeout < 0:
		return errors.New("tpool: shutdown timeout must not be negative")
	case c.StatsInterval < 0:
		return errors.New("tpool: stats interval must not be negative")
	}
	return nil
}

// withDefaults fills zero values from the struct tags.
func (c PoolConfig) withDefaults() (PoolConfig, error) {
	if err := defaults.Set(&c); err != nil {
		return c, err
	}
	return c, nil
}
