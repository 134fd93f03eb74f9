package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJwtSecret is only meant for local runs; serve warns when it is still in use.
const DefaultJwtSecret = "default-very-insecure-secret-key"

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, postgres or sqlite
	URL      string `mapstructure:"url"`
	LogLevel string `mapstructure:"log_level"`
}

type ConsulConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// AdminConfig describes the account created by the admin seeder.
type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type Config struct {
	HTTPPort      int            `mapstructure:"http_port"`
	GRPCPort      int            `mapstructure:"grpc_port"`
	LogLevel      string         `mapstructure:"log_level"`
	ServiceName   string         `mapstructure:"service_name"`
	AdvertiseHost string         `mapstructure:"advertise_host"`
	JwtSecret     string         `mapstructure:"jwt_secret"`
	JwtTTL        time.Duration  `mapstructure:"jwt_ttl"`
	PageSize      int            `mapstructure:"page_size"`
	Database      DatabaseConfig `mapstructure:"database"`
	Consul        ConsulConfig   `mapstructure:"consul"`
	Admin         AdminConfig    `mapstructure:"admin"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "user-admin")
	v.SetDefault("advertise_host", "127.0.0.1")
	v.SetDefault("jwt_secret", DefaultJwtSecret)
	v.SetDefault("jwt_ttl", 24*time.Hour)
	v.SetDefault("page_size", 10)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:user-admin.db?cache=shared")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("consul.enabled", false)
	v.SetDefault("consul.address", "127.0.0.1:8500")
	v.SetDefault("admin.name", "Sara")
	v.SetDefault("admin.email", "admin@gmail.com")
	v.SetDefault("admin.password", "12345678")
}

// Load reads config.yaml from the working directory (or ./config), or the
// explicit file when path is set, then applies USERADMIN_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("USERADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.HTTPPort)
	}
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port %d", c.GRPCPort)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.JwtSecret == "" {
		return errors.New("jwt_secret must not be empty")
	}
	if c.JwtTTL <= 0 {
		return fmt.Errorf("invalid jwt_ttl %s", c.JwtTTL)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("invalid page_size %d", c.PageSize)
	}
	return nil
}

// UsesDefaultSecret reports whether the JWT secret was never configured.
func (c *Config) UsesDefaultSecret() bool {
	return c.JwtSecret == DefaultJwtSecret
}
