package config

import (
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"session_store"`
	Generation GenerationConfig `yaml:"generation"`
	Platform   PlatformConfig   `yaml:"platform"`
	Publish    PublishConfig    `yaml:"publish"`
}

type ServerConfig struct {
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// StoreConfig selects and tunes the session store backend.
type StoreConfig struct {
	Driver string            `yaml:"driver"`
	SQLite SQLiteStoreConfig `yaml:"sqlite,omitempty"`
	Redis  RedisStoreConfig  `yaml:"redis,omitempty"`
}

type SQLiteStoreConfig struct {
	Path string `yaml:"path"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// GenerationConfig wires the content generation pipeline.
type GenerationConfig struct {
	TextProvider string        `yaml:"text_provider"` // "endpoint" or "openai"
	TextURL      string        `yaml:"text_url"`
	ImageURL     string        `yaml:"image_url"`
	MediaDir     string        `yaml:"media_dir"`
	Timeout      time.Duration `yaml:"timeout"`
	RequireText  bool          `yaml:"require_text"` // treat text exhaustion as a failure
	OpenAI       OpenAIConfig  `yaml:"openai,omitempty"`
}

type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"url,omitempty"`
	ModelName string `yaml:"model_name"`
}

// PlatformConfig points at the social platform gateway.
type PlatformConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type PublishConfig struct {
	CronEnabled bool `yaml:"cron_enabled"`
}
