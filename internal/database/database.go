package database

import (
	"context"
	"strings"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/djeeyo/nmreggae/internal/metrics"
	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrUnsupportedDriver is returned for a driver other than postgres or sqlite
var ErrUnsupportedDriver = errors.New("unsupported database driver")

const maxRetryBackoff = 30 * time.Second

// Connect opens the configured database, sizes the pool and registers the
// metrics hooks. m may be nil.
func Connect(cfg config.DatabaseConfig, m *metrics.Metrics) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "postgresql", "":
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.Wrapf(ErrUnsupportedDriver, "driver %q", cfg.Driver)
	}

	logLevel := logger.Error
	if cfg.Debug {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		&logAdapter{},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database connection")
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if m != nil {
		if err := RegisterDurationHooks(db); err != nil {
			return nil, err
		}
		if err := RegisterMetricsHooks(db, m); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// ConnectWithRetry calls Connect up to maxAttempts times, doubling the wait
// between attempts. A bad driver is not retried.
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, m *metrics.Metrics, maxAttempts int) (*gorm.DB, error) {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var db *gorm.DB
		db, err = Connect(cfg, m)
		if err == nil {
			if err = Ping(ctx, db); err == nil {
				return db, nil
			}
			Close(db)
		}
		if errors.Is(err, ErrUnsupportedDriver) {
			return nil, err
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("database not ready, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, errors.Wrapf(err, "database unreachable after %d attempts", maxAttempts)
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return errors.Wrap(models.SetupModels(db), "failed to migrate database")
}

// Ping checks that the database answers
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get database connection")
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// logAdapter adapts the GORM logger to zerolog
type logAdapter struct{}

func (l *logAdapter) Printf(format string, args ...interface{}) {
	log.Debug().Str("component", "gorm").Msgf(format, args...)
}
