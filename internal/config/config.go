package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
)

// EnvPrefix is prepended to every environment override, e.g. SAFECOMMUTE_SERVER_PORT
const EnvPrefix = "SAFECOMMUTE"

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Retention RetentionConfig `mapstructure:"retention"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   logger.Config   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	Heartbeat       time.Duration `mapstructure:"heartbeat"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig guards write endpoints with HS256 bearer tokens when Secret is set
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type RoutingConfig struct {
	AvgSpeedKmh    float64 `mapstructure:"avg_speed_kmh"`
	AccessMinutes  int     `mapstructure:"access_minutes"`
	MinBaseMinutes int     `mapstructure:"min_base_minutes"`
}

type SimulatorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Seed         int64         `mapstructure:"seed"`
	VehicleTick  time.Duration `mapstructure:"vehicle_tick"`
	CrowdTick    time.Duration `mapstructure:"crowd_tick"`
	CleanupTick  time.Duration `mapstructure:"cleanup_tick"`
	ReportHour   int           `mapstructure:"report_hour"`
	SeedVehicles bool          `mapstructure:"seed_vehicles"`
	SeedRoutes   bool          `mapstructure:"seed_routes"`
}

type RetentionConfig struct {
	CrowdReadings  time.Duration `mapstructure:"crowd_readings"`
	ResolvedAlerts time.Duration `mapstructure:"resolved_alerts"`
	RecentWindow   time.Duration `mapstructure:"recent_window"`
}

type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BrokerList string `mapstructure:"broker_list"`
	Topic      string `mapstructure:"topic"`
}

// Brokers splits the comma separated broker list
func (k KafkaConfig) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(k.BrokerList, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type ReportConfig struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
}

// New returns a viper instance carrying every default, ready for flag binding
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_window", time.Minute)
	v.SetDefault("server.heartbeat", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/safecommute.db")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "safecommute")

	v.SetDefault("routing.avg_speed_kmh", 45.0)
	v.SetDefault("routing.access_minutes", 5)
	v.SetDefault("routing.min_base_minutes", 25)

	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.seed", 42)
	v.SetDefault("simulator.vehicle_tick", 10*time.Second)
	v.SetDefault("simulator.crowd_tick", 15*time.Second)
	v.SetDefault("simulator.cleanup_tick", time.Hour)
	v.SetDefault("simulator.report_hour", 6)
	v.SetDefault("simulator.seed_vehicles", true)
	v.SetDefault("simulator.seed_routes", true)

	v.SetDefault("retention.crowd_readings", 7*24*time.Hour)
	v.SetDefault("retention.resolved_alerts", 24*time.Hour)
	v.SetDefault("retention.recent_window", 30*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.broker_list", "localhost:9092")
	v.SetDefault("kafka.topic", "safecommute.events")

	v.SetDefault("report.bucket", "")
	v.SetDefault("report.region", "us-east-1")
	v.SetDefault("report.prefix", "reports/daily")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", "safecommute.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load 加载配置: .env (optional), then config file (optional), env and bound flags
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers()) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	if c.Simulator.ReportHour < 0 || c.Simulator.ReportHour > 23 {
		return fmt.Errorf("simulator report hour must be within 0..23")
	}
	return nil
}
