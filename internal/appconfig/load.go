package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("initial_tag", cfg.InitialTag)
	v.SetDefault("skip_initial_focus", cfg.SkipInitialFocus)
	v.SetDefault("socket.path", cfg.Socket.Path)
	v.SetDefault("socket.read_timeout_ms", cfg.Socket.ReadTimeoutMS)
	v.SetDefault("socket.write_timeout_ms", cfg.Socket.WriteTimeoutMS)
	v.SetDefault("socket.max_request_bytes", cfg.Socket.MaxRequestBytes)
	v.SetDefault("sway.socket_path", cfg.Sway.SocketPath)
	v.SetDefault("client.timeout_ms", cfg.Client.TimeoutMS)

	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return Config{}, err
		}
	} else {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// isNotFound matches both viper's not-found error and a missing explicit file.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.InitialTag) == "" {
		return fmt.Errorf("initial_tag must not be empty")
	}
	if strings.TrimSpace(cfg.Socket.Path) == "" {
		return fmt.Errorf("socket.path must not be empty")
	}
	if cfg.Socket.ReadTimeoutMS <= 0 || cfg.Socket.WriteTimeoutMS <= 0 {
		return fmt.Errorf("socket timeouts must be positive")
	}
	if cfg.Socket.MaxRequestBytes < 64 {
		return fmt.Errorf("socket.max_request_bytes must be at least 64, got %d", cfg.Socket.MaxRequestBytes)
	}
	if cfg.Client.TimeoutMS <= 0 {
		return fmt.Errorf("client.timeout_ms must be positive")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Socket.Path = expandEnv(cfg.Socket.Path)
	cfg.Sway.SocketPath = expandEnv(cfg.Sway.SocketPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
