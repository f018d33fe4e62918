package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ReservationConfig struct {
	// Longest reservation accepted, counted from now.
	MaxDays int `mapstructure:"max_days"`
}

type ExportConfig struct {
	// CSV file rewritten after every mutation.
	Path string `mapstructure:"path"`
	// Prepend UTF-8 BOM, so spreadsheet tools detect the encoding.
	BOM bool `mapstructure:"bom"`
}

type AccessConfig struct {
	// Additional addresses treated as the host machine.
	PrivilegedHosts []string `mapstructure:"privileged_hosts"`
	// Optional YAML file listing more privileged addresses.
	PolicyFile string `mapstructure:"policy_file"`
	// Remote used to find the outbound route source address. Nothing is sent.
	RouteProbe string `mapstructure:"route_probe"`
}

type Config struct {
	LogLevel   string `mapstructure:"log_level"`
	ListenAddr string `mapstructure:"listen_addr"`
	BaseURL    string `mapstructure:"base_url"`

	// IANA zone name, or "Local".
	Timezone string `mapstructure:"timezone"`

	// Comma separated list of allowed CIDR networks. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks"`
	// Proxies allowed to set X-Forwarded-For. Empty trusts none, so the host
	// check always sees the socket address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	HistoryLimit int `mapstructure:"history_limit"`
	RefreshMS    int `mapstructure:"refresh_ms"`

	Reservation ReservationConfig `mapstructure:"reservation"`
	Export      ExportConfig      `mapstructure:"export"`
	Access      AccessConfig      `mapstructure:"access"`

	Storage Storage `mapstructure:"storage"`

	location *time.Location
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// Location returns the wall clock zone used for timestamps and day grouping.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// MaxReservation is the longest accepted distance between now and an ETA.
func (c *Config) MaxReservation() time.Duration {
	return time.Duration(c.Reservation.MaxDays) * 24 * time.Hour
}

// LoadConfig reads configuration from config.yaml and environment variables.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, path := range configFile {
		if path != "" {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		slog.Debug("No config file found, using defaults and environment")
	}

	// Load configuration from environment variables
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	cfg.location = loc

	if cfg.Reservation.MaxDays <= 0 {
		slog.Warn("reservation.max_days must be positive, using default", slog.Int("actual", cfg.Reservation.MaxDays))
		cfg.Reservation.MaxDays = defaults["reservation.max_days"].(int)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults["history_limit"].(int)
	}
	if cfg.RefreshMS <= 0 {
		slog.Warn("refresh_ms must be positive, using default", slog.Int("actual", cfg.RefreshMS))
		cfg.RefreshMS = defaults["refresh_ms"].(int)
	}

	// Convert relative sqlite path to absolute instance folder
	if cfg.Storage.SQLite != nil && cfg.Storage.SQLite.Path != "" {
		if cfg.Storage.SQLite.Path == ":memory:" {
			// In-memory database, do nothing
		} else if !filepath.IsAbs(cfg.Storage.SQLite.Path) {
			cfg.Storage.SQLite.Path = filepath.Join(getConfigPath(), cfg.Storage.SQLite.Path)
		}
	}
	if cfg.Export.Path != "" && !filepath.IsAbs(cfg.Export.Path) {
		cfg.Export.Path = filepath.Join(getConfigPath(), cfg.Export.Path)
	}

	Cfg = &cfg
	return &cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
