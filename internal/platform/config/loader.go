package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configPaths lists the file locations probed in order.
var configPaths = []string{".config.yaml", "config.yaml"}

// Loader reads configuration from an optional yaml file layered over defaults,
// with a handful of environment overrides for secrets.
type Loader struct {
	useDotEnv bool
	paths     []string
}

func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		paths:     configPaths,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPaths overrides the probed file locations (useful for tests).
func (l *Loader) WithPaths(paths ...string) *Loader {
	if len(paths) > 0 {
		l.paths = paths
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := DefaultConfig()
	path := "defaults"

	for _, candidate := range l.paths {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read config file %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", candidate, err)
		}
		path = candidate
		break
	}

	applyEnvOverrides(cfg)

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOPOST_SERVER_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("AUTOPOST_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("AUTOPOST_GATEWAY_URL"); v != "" {
		cfg.Platform.GatewayURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generation.OpenAI.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
}
