package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the gorm/postgres settings.
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

// RedisConfig holds the optional snapshot cache settings. An empty address
// disables the cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StressScenarioConfig defines one named shock applied during stress testing.
type StressScenarioConfig struct {
	Name        string  `mapstructure:"name"`
	ShockPct    float64 `mapstructure:"shock_pct"`
	Description string  `mapstructure:"description"`
}

// RiskConfig holds the risk engine policy knobs.
type RiskConfig struct {
	HistoricalDays     int                    `mapstructure:"historical_days"`
	LookbackWindowDays int                    `mapstructure:"lookback_window_days"`
	HorizonDays        int                    `mapstructure:"horizon_days"`
	EWMADecay          float64                `mapstructure:"ewma_decay"`
	BacktestConfidence float64                `mapstructure:"backtest_confidence"`
	KupiecAlpha        float64                `mapstructure:"kupiec_alpha"`
	StressScenarios    []StressScenarioConfig `mapstructure:"stress_scenarios"`
	SnapshotSchedule   string                 `mapstructure:"snapshot_schedule"`
	SnapshotTTL        time.Duration          `mapstructure:"snapshot_ttl"`
}

// Config is the application configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Risk     RiskConfig     `mapstructure:"risk"`
}

// Load reads configuration from config.yaml (working directory or /etc/oilrisk)
// with OILRISK_-prefixed environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/oilrisk")

	v.SetEnvPrefix("OILRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults carry a bare deploy.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=oilrisk dbname=oilrisk sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("risk.historical_days", 252)
	v.SetDefault("risk.lookback_window_days", 30)
	v.SetDefault("risk.horizon_days", 1)
	v.SetDefault("risk.ewma_decay", 0.94)
	v.SetDefault("risk.backtest_confidence", 0.95)
	v.SetDefault("risk.kupiec_alpha", 0.05)
	v.SetDefault("risk.snapshot_schedule", "0 18 * * 1-5")
	v.SetDefault("risk.snapshot_ttl", 48*time.Hour)
	v.SetDefault("risk.stress_scenarios", []map[string]interface{}{
		{"name": "-10% Shock", "shock_pct": -0.10, "description": "10% decline in all oil and fuel prices"},
		{"name": "+10% Shock", "shock_pct": 0.10, "description": "10% increase in all oil and fuel prices"},
		{"name": "-20% Parallel Move", "shock_pct": -0.20, "description": "20% parallel decline across the curve"},
		{"name": "+20% Parallel Move", "shock_pct": 0.20, "description": "20% parallel rise across the curve"},
		{"name": "Historical Worst", "shock_pct": -0.15, "description": "Repeat of historical worst daily oil price decline"},
	})
}

func (c *Config) validate() error {
	if c.Risk.HistoricalDays <= 0 {
		return fmt.Errorf("risk.historical_days must be positive, got %d", c.Risk.HistoricalDays)
	}
	if c.Risk.LookbackWindowDays <= 0 {
		return fmt.Errorf("risk.lookback_window_days must be positive, got %d", c.Risk.LookbackWindowDays)
	}
	if c.Risk.EWMADecay <= 0 || c.Risk.EWMADecay >= 1 {
		return fmt.Errorf("risk.ewma_decay must be in (0,1), got %f", c.Risk.EWMADecay)
	}
	return nil
}
