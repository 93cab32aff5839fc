package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	StoreMySQL  = "mysql"
	StoreBadger = "badger"

	AuthJWT      = "jwt"
	AuthFirebase = "firebase"

	RelayNone  = "none"
	RelayRedis = "redis"
	RelayKafka = "kafka"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	StoreDriver            string        `env:"STORE_DRIVER" envDefault:"mysql"`
	DBUser                 string        `env:"DB_USER"`
	DBPassword             string        `env:"DB_PASSWORD"`
	DBHost                 string        `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string        `env:"DB_NAME"`
	DBPort                 string        `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string        `env:"INSTANCE_CONNECTION_NAME"`
	BadgerDir              string        `env:"BADGER_DIR" envDefault:"./data/badger"`
	StoreTimeout           time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	AuthProvider      string        `env:"AUTH_PROVIDER" envDefault:"jwt"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTIssuer         string        `env:"JWT_ISSUER" envDefault:"rental-backend"`
	JWTTTL            time.Duration `env:"JWT_TTL" envDefault:"24h"`
	FirebaseProjectID string        `env:"FIREBASE_PROJECT_ID"`

	RelayDriver  string   `env:"RELAY_DRIVER" envDefault:"none"`
	RedisAddr    string   `env:"REDIS_ADDR"`
	RedisChannel string   `env:"REDIS_CHANNEL" envDefault:"rental:messages"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"rental.messages"`
	NodeID       int64    `env:"NODE_ID" envDefault:"1"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	LogFile  string `env:"LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMySQL:
		if c.DBUser == "" || c.DBName == "" || (c.DBHost == "" && c.InstanceConnectionName == "") {
			errs = append(errs, errors.New("mysql store requires DB_USER, DB_NAME and DB_HOST or INSTANCE_CONNECTION_NAME"))
		}
	case StoreBadger:
		if c.BadgerDir == "" {
			errs = append(errs, errors.New("badger store requires BADGER_DIR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.AuthProvider {
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("jwt auth requires JWT_SECRET"))
		}
	case AuthFirebase:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("firebase auth requires FIREBASE_PROJECT_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider))
	}

	switch c.RelayDriver {
	case RelayNone:
	case RelayRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis relay requires REDIS_ADDR"))
		}
	case RelayKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("kafka relay requires KAFKA_BROKERS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RELAY_DRIVER %q", c.RelayDriver))
	}

	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("NODE_ID %d out of range 0-1023", c.NodeID))
	}
	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
