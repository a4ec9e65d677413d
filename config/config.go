package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Passcode PasscodeConfig `mapstructure:"passcode"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Settle   SettleConfig   `mapstructure:"settlement"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// PasscodeConfig tunes the e-mail passcode login.
type PasscodeConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int64         `mapstructure:"max_attempts"`
	Length      int           `mapstructure:"length"`
}

// ChainConfig points the balance gate at an EVM JSON-RPC endpoint.
// An empty RPCURL disables balance checks.
type ChainConfig struct {
	RPCURL  string        `mapstructure:"rpc_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig configures the outbound notification relay.
// An empty RelayURL means notifications are only logged.
type NotifyConfig struct {
	RelayURL    string        `mapstructure:"relay_url"`
	RelaySecret string        `mapstructure:"relay_secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SettleConfig points completed escrows at a settlement relay.
// An empty RelayURL leaves settlement_ref unset.
type SettleConfig struct {
	RelayURL    string        `mapstructure:"relay_url"`
	RelaySecret string        `mapstructure:"relay_secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ESC_.
// Nested keys use underscore: ESC_DATABASE_HOST, ESC_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "secure_escrow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "secure-escrow")
	v.SetDefault("passcode.ttl", "10m")
	v.SetDefault("passcode.max_attempts", 5)
	v.SetDefault("passcode.length", 6)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.timeout", "5s")
	v.SetDefault("notify.relay_url", "")
	v.SetDefault("notify.relay_secret", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("settlement.relay_url", "")
	v.SetDefault("settlement.relay_secret", "")
	v.SetDefault("settlement.timeout", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// ESC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ESC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid storage.driver %q: must be postgres or memory", c.Storage.Driver)
	}
	if c.Passcode.Length < 4 || c.Passcode.Length > 10 {
		return fmt.Errorf("invalid passcode.length %d: must be between 4 and 10", c.Passcode.Length)
	}
	if c.Passcode.MaxAttempts < 1 {
		return fmt.Errorf("invalid passcode.max_attempts %d: must be positive", c.Passcode.MaxAttempts)
	}
	return nil
}
