package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/repository"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func BuildDSN(cfg *config.Config) string {
	addr := cfg.DBHost

	// Prefer Cloud SQL unix socket when INSTANCE_CONNECTION_NAME is provided.
	if cfg.InstanceConnectionName != "" {
		addr = fmt.Sprintf("unix(/cloudsql/%s)", cfg.InstanceConnectionName)
	} else if strings.HasPrefix(cfg.DBHost, "tcp(") {
		// already includes tcp()
	} else if strings.HasPrefix(cfg.DBHost, "unix(") {
		// already includes unix()
	} else if strings.HasPrefix(cfg.DBHost, "/") {
		addr = fmt.Sprintf("unix(%s)", cfg.DBHost)
	} else {
		addr = fmt.Sprintf("tcp(%s:%s)", cfg.DBHost, cfg.DBPort)
	}

	return fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DBUser, cfg.DBPassword, addr, cfg.DBName)
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectDSN(BuildDSN(cfg))
}

// ConnectDSN opens a mysql pool. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey so the repositories can detect lost creation races.
func ConnectDSN(dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)

	return db, nil
}

// Open builds the store selected by STORE_DRIVER. The mysql schema is
// migrated before returning.
func Open(cfg *config.Config, seq repository.Sequencer, log *slog.Logger) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		conn, err := Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		if err := repository.AutoMigrate(conn); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("store ready", "driver", cfg.StoreDriver, "host", cfg.DBHost, "database", cfg.DBName)
		return repository.NewGormStore(conn, seq), nil
	case config.StoreBadger:
		bdb, err := repository.OpenBadger(cfg.BadgerDir, NewBadgerLogger(log))
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		log.Info("store ready", "driver", cfg.StoreDriver, "dir", cfg.BadgerDir)
		return repository.NewBadgerStore(bdb, seq), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// BadgerLogger routes badger's printf-style logging into slog.
type BadgerLogger struct {
	log *slog.Logger
}

func NewBadgerLogger(log *slog.Logger) *BadgerLogger {
	return &BadgerLogger{log: log.With("component", "badger")}
}

func (l *BadgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *BadgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *BadgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *BadgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
