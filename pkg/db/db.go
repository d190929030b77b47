package db

import (
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prontocore/kitchen/internal/config"
	"github.com/prontocore/kitchen/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module wires the gorm.DB connection for fx-based applications.
var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the configured dialect and applies pool limits, exactly as
// cmd/kitchencore/main.go expects from fx.Provide(db.New).
func New(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	}
	if cfg.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	}
	if cfg.DBConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)
	}

	return conn, nil
}

// NewTest opens an in-memory sqlite database for unit tests, the same
// harness every *_test.go in this codebase uses. Row-locking repositories
// issue raw "SELECT ... FOR UPDATE [SKIP LOCKED]" which sqlite doesn't
// parse, so callbacks strip the clause before it reaches the driver -
// sqlite has no concurrent writers in a test process, so the lock itself
// is unnecessary there.
func NewTest() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	conn.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked_query", stripForUpdate)
	conn.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)
	conn.Callback().Raw().Before("gorm:raw").Register("sqlite_skip_locked_raw", stripForUpdate)

	return conn, nil
}
