package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the effective pinrec configuration.
type Config struct {
	Proxy   ProxyConfig   `mapstructure:"proxy" yaml:"proxy"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// ProxyConfig locates the relay that forwards transcription and chat
// requests to the AI provider.
type ProxyConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	WhisperModel  string `mapstructure:"whisper_model" yaml:"whisper_model"`
	ChatModel     string `mapstructure:"chat_model" yaml:"chat_model"`
	FallbackModel string `mapstructure:"fallback_model" yaml:"fallback_model"`
	Language      string `mapstructure:"language" yaml:"language"`
}

// WhisperEndpoint returns the full URL of the transcription route.
func (p ProxyConfig) WhisperEndpoint() string {
	return strings.TrimRight(p.BaseURL, "/") + "/whisper"
}

// ChatEndpoint returns the full URL of the chat-completion route.
func (p ProxyConfig) ChatEndpoint() string {
	return strings.TrimRight(p.BaseURL, "/") + "/chat"
}

type CaptureConfig struct {
	InputFormat string `mapstructure:"input_format" yaml:"input_format"` // "pulse", "alsa", "avfoundation"
	Device      string `mapstructure:"device" yaml:"device"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "file", "sqlite", "memory"
	Path    string `mapstructure:"path" yaml:"path"`
}

var defaultConfig = Config{
	Proxy: ProxyConfig{
		WhisperModel:  "whisper-1",
		ChatModel:     "o3-mini-2025-01-31",
		FallbackModel: "gpt-4",
		Language:      "en",
	},
	Capture: CaptureConfig{
		InputFormat: "pulse",
		Device:      "default",
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "PinRec"),
	},
	Storage: StorageConfig{
		Backend: "file",
		Path:    filepath.Join(os.Getenv("HOME"), ".local", "share", "pinrec", "sessions.json"),
	},
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/pinrec.yaml")
}

// Load reads the config file, layering it over the defaults. A missing file
// yields the defaults unchanged.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig

	if configFile != "" {
		v := viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		} else {
			if err := v.Unmarshal(&cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file %s: %w", configFile, err)
			}
		}
	}

	applyDefaults(&cfg)
	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Storage.Path = expandPath(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills fields the file left empty.
func applyDefaults(cfg *Config) {
	if cfg.Proxy.WhisperModel == "" {
		cfg.Proxy.WhisperModel = defaultConfig.Proxy.WhisperModel
	}
	if cfg.Proxy.ChatModel == "" {
		cfg.Proxy.ChatModel = defaultConfig.Proxy.ChatModel
	}
	if cfg.Proxy.FallbackModel == "" {
		cfg.Proxy.FallbackModel = defaultConfig.Proxy.FallbackModel
	}
	if cfg.Capture.InputFormat == "" {
		cfg.Capture.InputFormat = defaultConfig.Capture.InputFormat
	}
	if cfg.Capture.Device == "" {
		cfg.Capture.Device = defaultConfig.Capture.Device
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultConfig.Output.Directory
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaultConfig.Storage.Backend
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultConfig.Storage.Path
	}
}

// Validate checks the fields the rest of the system depends on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend must be one of file, sqlite, memory; got %q", c.Storage.Backend)
	}

	if c.Proxy.BaseURL != "" {
		u, err := url.Parse(c.Proxy.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("proxy.base_url must be an http(s) URL, got %q", c.Proxy.BaseURL)
		}
	}
	return nil
}

// RequireProxy rejects configurations that cannot reach the relay; recording
// with pins needs it, browsing history does not.
func (c *Config) RequireProxy() error {
	if c.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy.base_url is not configured; set it in %s", DefaultPath())
	}
	return nil
}

// WriteDefault writes a fresh config file with the default settings.
func WriteDefault(configFile string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" {
		return os.Getenv("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}
