package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "UAPI_"

// Load builds the configuration in layers:
//  1. Defaults
//  2. YAML file (configPath, UAPI_CONFIG, ./uapi.yaml, ./config.yaml)
//  3. ./.env, without replacing variables already set
//  4. UAPI_* environment variables
//  5. Validate
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := discoverConfigFile(configPath); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv(envPrefix + "CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"uapi.yaml", "config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(envPrefix + name)); v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("FRAME_ADDR", &cfg.Frame.Addr)
	str("FRAME_CODEC", &cfg.Frame.Codec)
	str("REGISTRY_TYPE", &cfg.Registry.Type)
	str("REGISTRY_SERVICE", &cfg.Registry.Service)
	str("ADVERTISE_ADDR", &cfg.Registry.AdvertiseAddr)
	str("NATS_MODE", &cfg.NATS.Mode)
	str("NATS_URL", &cfg.NATS.URL)
	str("STORAGE_TYPE", &cfg.Storage.Type)
	str("POSTGRES_DSN", &cfg.Storage.DSN)

	if v := os.Getenv(envPrefix + "ETCD_ENDPOINTS"); v != "" {
		var eps []string
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				eps = append(eps, ep)
			}
		}
		cfg.Registry.Endpoints = eps
	}
}
