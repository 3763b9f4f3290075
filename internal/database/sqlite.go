package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqlitePragmas are applied to file databases; memory databases only need
// foreign keys.
var sqlitePragmas = url.Values{
	"_foreign_keys": {"1"},
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_synchronous":  {"NORMAL"},
}

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, memory, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if memory {
		// Every connection to a shared-cache memory database sees the same
		// data, but concurrent writers would hit SQLITE_LOCKED.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// sqliteDSN resolves the connection string and whether it names an in-memory
// database. A blank path or ":memory:" yields a shared in-memory database.
func sqliteDSN(cfg Config) (string, bool, error) {
	if cfg.DSN != "" {
		return cfg.DSN, strings.Contains(cfg.DSN, "memory"), nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return "file::memory:?cache=shared&_foreign_keys=1", true, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", false, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return "file:" + filepath.ToSlash(path) + "?" + sqlitePragmas.Encode(), false, nil
}
