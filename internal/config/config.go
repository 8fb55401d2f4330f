package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const defaultPath = "config/console.yaml"

type Config struct {
	Server struct {
		Address       string   `yaml:"address"`
		AllowedOrigin []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	S3 struct {
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		PublicURL string `yaml:"public_url"`
		Prefix    string `yaml:"prefix"`
	} `yaml:"s3"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Files struct {
		Permissions string `yaml:"permissions"`
		Workflows   string `yaml:"workflows"`
	} `yaml:"files"`
	PermissionRefreshSeconds int `yaml:"permission_refresh_seconds"`
}

// LoadConfig reads the YAML file named by CONSOLE_CONFIG (config/console.yaml
// by default) and applies environment overrides on top.
func LoadConfig() (Config, error) {
	path := os.Getenv("CONSOLE_CONFIG")
	if path == "" {
		path = defaultPath
	}
	return Load(path)
}

// Load reads the config file at path. A missing file yields defaults plus
// environment overrides.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":4001"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	switch cfg.Database.Driver {
	case "mysql", "pgx", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("database url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("auth jwt_secret is required")
	}
	if cfg.PermissionRefreshSeconds < 0 {
		return Config{}, fmt.Errorf("permission_refresh_seconds must not be negative")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Server.Address, "CONSOLE_ADDR")
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}
	override(&cfg.Database.Driver, "DB_DRIVER")
	override(&cfg.Database.URL, "DB_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.NATS.URL, "NATS_URL")
	override(&cfg.S3.Bucket, "S3_BUCKET")
	override(&cfg.S3.Region, "S3_REGION")
	override(&cfg.S3.Endpoint, "S3_ENDPOINT")
	override(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	override(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	override(&cfg.S3.PublicURL, "S3_PUBLIC_URL")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Files.Permissions, "CONSOLE_PERMISSIONS_FILE")
	override(&cfg.Files.Workflows, "CONSOLE_WORKFLOWS_FILE")
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
