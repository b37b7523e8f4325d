package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment. The downward API fills the pod
// fields when running on the cluster.
type Config struct {
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	Port              int           `envconfig:"PORT" default:"5000"`
	Region            string        `envconfig:"AWS_REGION" default:"unknown"`
	ClusterName       string        `envconfig:"EKS_CLUSTER_NAME" default:"unknown"`
	PodName           string        `envconfig:"POD_NAME" default:"unknown"`
	Namespace         string        `envconfig:"POD_NAMESPACE" default:"unknown"`
	InstanceType      string        `envconfig:"INSTANCE_TYPE" default:"t3.micro"`
	CPUSampleInterval time.Duration `envconfig:"CPU_SAMPLE_INTERVAL" default:"1s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("PORT %d is out of range", cfg.Port)
	}
	if cfg.CPUSampleInterval < 0 {
		return cfg, fmt.Errorf("CPU_SAMPLE_INTERVAL must not be negative")
	}
	return cfg, nil
}

// Addr is host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel parses LogLevel, falling back to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
