package model

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// BackendConfig describes how to reach the back-office notification API.
type BackendConfig struct {
	// BaseURL is the root of the REST API (e.g., https://hr.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WSURL is the live feed endpoint. Derived from BaseURL when empty.
	WSURL string `mapstructure:"ws_url" yaml:"ws_url"`

	// TimeoutSec bounds each HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// Role is the viewer role passed as user_role when listing.
	Role string `mapstructure:"role" yaml:"role"`
}

// FeedConfig holds notification feed behavior.
type FeedConfig struct {
	// PollIntervalSec triggers a periodic refresh; 0 relies on the live
	// feed alone.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// GroupedDays is the window for the grouped summary view.
	GroupedDays int `mapstructure:"grouped_days" yaml:"grouped_days"`

	// LegacyMultipartRouting sends every decorated or scheduled
	// notification through the attachment endpoint, even without a file.
	LegacyMultipartRouting bool `mapstructure:"legacy_multipart_routing" yaml:"legacy_multipart_routing"`

	// RequireTarget makes at least one recipient role mandatory.
	RequireTarget bool `mapstructure:"require_target" yaml:"require_target"`

	// Roles are the recipient roles offered by the composer.
	Roles []string `mapstructure:"roles" yaml:"roles"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// MinIOConfig enables object storage for dev server attachments.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// DevServerConfig configures the local development backend.
type DevServerConfig struct {
	Addr      string      `mapstructure:"addr" yaml:"addr"`
	DBPath    string      `mapstructure:"db_path" yaml:"db_path"`
	UploadDir string      `mapstructure:"upload_dir" yaml:"upload_dir"`
	MinIO     MinIOConfig `mapstructure:"minio" yaml:"minio"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Feed      FeedConfig      `mapstructure:"feed" yaml:"feed"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	DevServer DevServerConfig `mapstructure:"devserver" yaml:"devserver"`
}

// ConfigDir returns ~/.config/labordesk, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "labordesk")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8085",
			TimeoutSec: 30,
		},
		Feed: FeedConfig{
			GroupedDays: 7,
			Roles:       []string{"admin", "hr", "manager", "employee"},
		},
		Display: DisplayConfig{Theme: "default"},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "labordesk.log"),
		},
		DevServer: DevServerConfig{
			Addr:      ":8085",
			DBPath:    filepath.Join(ConfigDir(), "devserver.db"),
			UploadDir: filepath.Join(ConfigDir(), "uploads"),
		},
	}
}

// setDefaults mirrors defaultAppConfig into viper so that env overrides
// resolve for keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.ws_url", "")
	v.SetDefault("backend.timeout_sec", d.Backend.TimeoutSec)
	v.SetDefault("backend.role", "")
	v.SetDefault("feed.poll_interval_sec", 0)
	v.SetDefault("feed.grouped_days", d.Feed.GroupedDays)
	v.SetDefault("feed.legacy_multipart_routing", false)
	v.SetDefault("feed.require_target", false)
	v.SetDefault("feed.roles", d.Feed.Roles)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("devserver.addr", d.DevServer.Addr)
	v.SetDefault("devserver.db_path", d.DevServer.DBPath)
	v.SetDefault("devserver.upload_dir", d.DevServer.UploadDir)
	v.SetDefault("devserver.minio.endpoint", "")
	v.SetDefault("devserver.minio.access_key", "")
	v.SetDefault("devserver.minio.secret_key", "")
	v.SetDefault("devserver.minio.bucket", "labordesk-uploads")
	v.SetDefault("devserver.minio.use_ssl", false)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// LABORDESK_* environment variables override file values. A missing file
// yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("labordesk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Backend.TimeoutSec <= 0 {
		cfg.Backend.TimeoutSec = 30
	}
	if cfg.Feed.GroupedDays <= 0 {
		cfg.Feed.GroupedDays = 7
	}
	if cfg.Backend.WSURL == "" {
		ws, err := DeriveWSURL(cfg.Backend.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("deriving live feed url: %w", err)
		}
		cfg.Backend.WSURL = ws
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("feed", cfg.Feed)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("devserver", cfg.DevServer)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// DeriveWSURL maps an http(s) base URL to the ws(s) live feed endpoint.
func DeriveWSURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/notifications"
	u.RawQuery = ""
	return u.String(), nil
}
