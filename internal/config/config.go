package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store      StoreConfig      `yaml:"store"`
	NATS       NATSConfig       `yaml:"nats"`
	Web        WebConfig        `yaml:"web"`
	Validation ValidationConfig `yaml:"validation"`
	Gallery    GalleryConfig    `yaml:"gallery"`
	Vault      VaultConfig      `yaml:"vault"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type ValidationConfig struct {
	// MaxTerminationDepth caps the nesting of combination termination
	// conditions accepted from external input.
	MaxTerminationDepth int `yaml:"max_termination_depth"`
}

type GalleryConfig struct {
	// Seed writes the default team gallery into an empty store on startup.
	Seed   bool   `yaml:"seed"`
	UserID string `yaml:"user_id"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

func defaults() Config {
	return Config{
		Store: StoreConfig{
			Path: "data/agora.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8081,
		},
		Validation: ValidationConfig{
			MaxTerminationDepth: 32,
		},
		Gallery: GalleryConfig{
			Seed:   true,
			UserID: "guestuser@gmail.com",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("AGORA_CONFIG")
	if path == "" {
		path = "config/agora.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGORA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AGORA_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("AGORA_NATS_DATA_DIR"); v != "" {
		cfg.NATS.DataDir = v
	}
	if v := os.Getenv("AGORA_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("AGORA_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("AGORA_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	if v := os.Getenv("AGORA_GALLERY_USER"); v != "" {
		cfg.Gallery.UserID = v
	}
}
