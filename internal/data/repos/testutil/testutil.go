package testutil

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/powerlens-backend/internal/data/db"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

// SystemUserID is the AI identity provisioned in every test database.
var SystemUserID = uuid.MustParse("00000000-0000-7000-8000-000000000001")

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func SystemIdentity() db.SystemIdentity {
	return db.SystemIdentity{
		ID:    SystemUserID,
		Email: "ai-system@powerlens.test",
		Name:  "AI System",
	}
}

// DB opens a fresh, fully migrated SQLite database in a per-test temp dir.
// The handle has a single connection, so callers inside a transaction must
// issue every query through that transaction.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "powerlens_test.db")
	conn, err := db.OpenSQLite(path, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrateAll(conn); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	if err := db.EnsureAnnotationIndexes(conn); err != nil {
		tb.Fatalf("ensure indexes: %v", err)
	}
	if err := db.EnsureSystemUser(conn, SystemIdentity()); err != nil {
		tb.Fatalf("ensure system user: %v", err)
	}
	return conn
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
