package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pkt.systems/swayless/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int    `mapstructure:"config_version" yaml:"config_version"`
	InitialTag    string `mapstructure:"initial_tag" yaml:"initial_tag"`
	// SkipInitialFocus keeps the current workspaces when the daemon starts.
	SkipInitialFocus bool         `mapstructure:"skip_initial_focus" yaml:"skip_initial_focus"`
	Socket           SocketConfig `mapstructure:"socket" yaml:"socket"`
	Sway             SwayConfig   `mapstructure:"sway" yaml:"sway"`
	Client           ClientConfig `mapstructure:"client" yaml:"client"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SocketConfig configures the daemon's control socket.
type SocketConfig struct {
	Path            string `mapstructure:"path" yaml:"path"`
	ReadTimeoutMS   int    `mapstructure:"read_timeout_ms" yaml:"read_timeout_ms"`
	WriteTimeoutMS  int    `mapstructure:"write_timeout_ms" yaml:"write_timeout_ms"`
	MaxRequestBytes int64  `mapstructure:"max_request_bytes" yaml:"max_request_bytes"`
}

// ReadTimeout returns the request read deadline.
func (c SocketConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the response write deadline.
func (c SocketConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// SwayConfig locates the window manager IPC socket. An empty path falls back
// to $SWAYSOCK, then $I3SOCK.
type SwayConfig struct {
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path"`
}

// ClientConfig configures the command sender.
type ClientConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// Timeout returns the request/response timeout.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		InitialTag:    string(schema.DefaultInitialTag),
		Socket: SocketConfig{
			Path:            DefaultSocketPath(),
			ReadTimeoutMS:   5000,
			WriteTimeoutMS:  5000,
			MaxRequestBytes: 4096,
		},
		Sway: SwayConfig{
			SocketPath: "",
		},
		Client: ClientConfig{
			TimeoutMS: 5000,
		},
	}, nil
}

// DefaultSocketPath returns $XDG_RUNTIME_DIR/swayless.sock, or a per-uid path
// under /tmp when no runtime dir is set.
func DefaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "swayless.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("swayless-%d.sock", os.Getuid()))
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "swayless", "config.yaml"), nil
}
