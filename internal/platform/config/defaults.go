package config

import "time"

// DefaultConfig returns the configuration used when no file overrides exist.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:        "0.0.0.0",
			Port:      8080,
			Token:     "your_token",
			JWTSecret: "autopost_jwt_secret",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Generation: GenerationConfig{
			TextProvider: "endpoint",
			TextURL:      "https://text.pollinations.ai",
			ImageURL:     "https://image.pollinations.ai/prompt",
			MediaDir:     "data/media",
			Timeout:      30 * time.Second,
		},
		Platform: PlatformConfig{
			GatewayURL: "http://127.0.0.1:8900",
			Timeout:    30 * time.Second,
		},
		Publish: PublishConfig{
			CronEnabled: true,
		},
	}
}
