package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "yaml"
	envPrefix  = "UXTRACE"
)

// Config is the resolved configuration for the collector, the capture agent,
// and the timeline viewer. Every key has a default; a config file is optional.
type Config struct {
	Server ServerConfig
	Agent  AgentConfig
	Viewer ViewerConfig
	Log    LogConfig
}

type ServerConfig struct {
	Address string
	DataDir string
	Backend string // "file", "sqlite" or "bolt"
}

type AgentConfig struct {
	Listen          string // local control endpoint for the embedding UI
	CollectorURL    string
	CacheDir        string
	CaptureInterval time.Duration
	SyncInterval    time.Duration
	CaptureCommand  string // platform default when empty
}

type ViewerConfig struct {
	Host      string
	Tolerance time.Duration // nearest-match acceptance window
}

type LogConfig struct {
	Level string
	JSON  bool
}

// AppDir returns the platform-specific application data directory.
func AppDir() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "uxtrace"), nil
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "uxtrace"), nil
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "uxtrace"), nil
	}
}

// Load reads <appDir>/config.yaml if present and applies UXTRACE_* environment
// overrides. A missing config file is not an error.
func Load(appDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(appDir)

	v.SetDefault("server.address", "0.0.0.0:3000")
	v.SetDefault("server.data_dir", filepath.Join(appDir, "data"))
	v.SetDefault("server.backend", "file")
	v.SetDefault("agent.listen", "127.0.0.1:8123")
	v.SetDefault("agent.collector_url", "http://127.0.0.1:3000")
	v.SetDefault("agent.cache_dir", filepath.Join(appDir, "cache"))
	v.SetDefault("agent.capture_interval", 10*time.Second)
	v.SetDefault("agent.sync_interval", 30*time.Second)
	v.SetDefault("agent.capture_command", "")
	v.SetDefault("viewer.host", "http://127.0.0.1:3000")
	v.SetDefault("viewer.tolerance", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: v.GetString("server.address"),
			DataDir: v.GetString("server.data_dir"),
			Backend: v.GetString("server.backend"),
		},
		Agent: AgentConfig{
			Listen:          v.GetString("agent.listen"),
			CollectorURL:    strings.TrimRight(v.GetString("agent.collector_url"), "/"),
			CacheDir:        v.GetString("agent.cache_dir"),
			CaptureInterval: v.GetDuration("agent.capture_interval"),
			SyncInterval:    v.GetDuration("agent.sync_interval"),
			CaptureCommand:  v.GetString("agent.capture_command"),
		},
		Viewer: ViewerConfig{
			Host:      strings.TrimRight(v.GetString("viewer.host"), "/"),
			Tolerance: v.GetDuration("viewer.tolerance"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}

	switch cfg.Server.Backend {
	case "file", "sqlite", "bolt":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Server.Backend)
	}
	return cfg, nil
}
