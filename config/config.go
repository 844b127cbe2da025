package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Branches []BranchConfig `mapstructure:"branches"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Password PasswordConfig `mapstructure:"password"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// DatabaseConfig describes one PostgreSQL target. The top-level database is the
// central one (user directory); branches may carry their own.
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

// IsZero reports whether no database was configured.
func (d DatabaseConfig) IsZero() bool {
	return d.Host == "" && d.DBName == ""
}

// BranchConfig is one entry of the branch reference set. A branch without a
// database block is served by the central database.
type BranchConfig struct {
	Code     string         `mapstructure:"code"`
	Name     string         `mapstructure:"name"`
	Address  string         `mapstructure:"address"`
	Phone    string         `mapstructure:"phone"`
	Database DatabaseConfig `mapstructure:"database"`
}

type LedgerConfig struct {
	Backend     string        `mapstructure:"backend"` // postgres, memory
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	DailyLimit  string        `mapstructure:"daily_limit"` // informational, decimal string
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"` // per command
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

// PasswordConfig is the Argon2id cost for new password hashes. Users whose
// stored hash used another cost are rehashed on their next login.
type PasswordConfig struct {
	Time      uint32 `mapstructure:"time"`
	MemoryKiB uint32 `mapstructure:"memory_kib"`
	Threads   uint8  `mapstructure:"threads"`
}

// AdminConfig seeds the first bank-level user. Empty disables seeding.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"` // empty disables publishing
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether ledger events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from a .env file, the config file and environment
// variables, in increasing precedence. Prefix: BLG_ (Branch LedGer).
// Nested keys use underscore: BLG_DATABASE_HOST, BLG_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "bank_central")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("ledger.backend", "postgres")
	v.SetDefault("ledger.lock_timeout", "5s")
	v.SetDefault("ledger.daily_limit", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "8h")
	v.SetDefault("jwt.issuer", "branch-ledger")
	v.SetDefault("password.time", 1)
	v.SetDefault("password.memory_kib", 64*1024)
	v.SetDefault("password.threads", 4)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ledger-events")
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

	// BLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("BLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for i := range cfg.Branches {
		cfg.Branches[i].Code = strings.ToUpper(strings.TrimSpace(cfg.Branches[i].Code))
	}

	return &cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if len(c.Branches) == 0 {
		return errors.New("at least one branch must be configured")
	}
	seen := make(map[string]struct{}, len(c.Branches))
	for _, b := range c.Branches {
		if b.Code == "" {
			return errors.New("branch code must not be empty")
		}
		if _, dup := seen[b.Code]; dup {
			return fmt.Errorf("branch %s configured twice", b.Code)
		}
		seen[b.Code] = struct{}{}
	}
	switch c.Ledger.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return errors.New("admin.username and admin.password must be set together")
	}
	return nil
}
