package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the yaml application configuration. Every field has a
// working default so the server boots without a config file.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Realtime struct {
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		PingInterval   time.Duration `yaml:"pingInterval"`
		MaxMessageSize int64         `yaml:"maxMessageSize"`
	} `yaml:"realtime"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.AllowedOrigins = []string{"*"}
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = getEnv("PORT", "8080")
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
