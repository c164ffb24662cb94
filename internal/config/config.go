// Package config loads the tunables the core engines treat as an external
// collaborator (the Settings interface): simulation delays, the
// prediction/interpolation feature toggles, and the ambient server/client
// defaults. It layers environment variables over a config file over
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the concrete Settings implementation plus the ambient knobs
// (logging, metrics, transport) a runnable binary needs beyond the core's
// own tuning surface.
type Config struct {
	ClientToServerDelayMS int  `mapstructure:"client_to_server_delay_ms"`
	ServerToClientDelayMS int  `mapstructure:"server_to_client_delay_ms"`
	PredictionEnabled     bool `mapstructure:"prediction_enabled"`
	InterpolationEnabled  bool `mapstructure:"interpolation_enabled"`

	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tuning  TuningConfig  `mapstructure:"tuning"`
}

// ServerConfig controls the UDP listener and client bookkeeping.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	ClientInactivityTimeout time.Duration `mapstructure:"client_inactivity_timeout"`
	BroadcastInterval       time.Duration `mapstructure:"broadcast_interval"`
}

// LoggingConfig controls the logrus-backed Logger (internal/logging).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TuningConfig holds the reconciliation and interpolation constants, each
// overridable independently of the Settings toggles above.
type TuningConfig struct {
	ReconciliationThreshold  float32       `mapstructure:"reconciliation_threshold"`
	ReconciliationCooldown   time.Duration `mapstructure:"reconciliation_cooldown"`
	InterpolationDelay       time.Duration `mapstructure:"interpolation_delay"`
	MaxInterpolationDistance float32       `mapstructure:"max_interpolation_distance"`
	SmoothingFactor          float32       `mapstructure:"smoothing_factor"`
	RegistrationTimeout      time.Duration `mapstructure:"registration_timeout"`
}

// ClientToServerDelayMs implements the Settings interface.
func (c *Config) ClientToServerDelayMs() int { return c.ClientToServerDelayMS }

// ServerToClientDelayMs implements the Settings interface.
func (c *Config) ServerToClientDelayMs() int { return c.ServerToClientDelayMS }

// PredictionIsEnabled implements the Settings interface.
func (c *Config) PredictionIsEnabled() bool { return c.PredictionEnabled }

// InterpolationIsEnabled implements the Settings interface.
func (c *Config) InterpolationIsEnabled() bool { return c.InterpolationEnabled }

// Defaults returns a Config populated with the documented tuning and
// server defaults; MAX_STRING_LENGTH lives in pkg/wire, the rest live here.
func Defaults() *Config {
	return &Config{
		ClientToServerDelayMS: 0,
		ServerToClientDelayMS: 0,
		PredictionEnabled:     true,
		InterpolationEnabled:  true,
		Server: ServerConfig{
			Port:                    9500,
			ClientInactivityTimeout: 60 * time.Second,
			BroadcastInterval:       16 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Tuning: TuningConfig{
			ReconciliationThreshold:  0.5,
			ReconciliationCooldown:   33 * time.Millisecond,
			InterpolationDelay:       100 * time.Millisecond,
			MaxInterpolationDistance: 5.0,
			SmoothingFactor:          0.2,
			RegistrationTimeout:      3 * time.Second,
		},
	}
}

// Load reads configuration from the built-in defaults, configPath (if
// non-empty and present), and environment variables prefixed NETCODE_, in
// that increasing order of precedence matched by viper's merge semantics:
// defaults seed the map, the file overrides them, and environment
// variables override the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NETCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Defaults())

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("client_to_server_delay_ms", d.ClientToServerDelayMS)
	v.SetDefault("server_to_client_delay_ms", d.ServerToClientDelayMS)
	v.SetDefault("prediction_enabled", d.PredictionEnabled)
	v.SetDefault("interpolation_enabled", d.InterpolationEnabled)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.client_inactivity_timeout", d.Server.ClientInactivityTimeout)
	v.SetDefault("server.broadcast_interval", d.Server.BroadcastInterval)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("tuning.reconciliation_threshold", d.Tuning.ReconciliationThreshold)
	v.SetDefault("tuning.reconciliation_cooldown", d.Tuning.ReconciliationCooldown)
	v.SetDefault("tuning.interpolation_delay", d.Tuning.InterpolationDelay)
	v.SetDefault("tuning.max_interpolation_distance", d.Tuning.MaxInterpolationDistance)
	v.SetDefault("tuning.smoothing_factor", d.Tuning.SmoothingFactor)
	v.SetDefault("tuning.registration_timeout", d.Tuning.RegistrationTimeout)
}
