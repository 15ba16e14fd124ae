// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// sqlitePragmas are applied by the driver to every pooled connection, not
// only the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// sqliteDSN appends the connection PRAGMAs to path as _pragma parameters.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// OpenSQLite opens (or creates) a SQLite database. Every connection in the
// pool runs in WAL mode with foreign keys on and a 5s busy timeout, so
// concurrent writers wait for the lock instead of failing at once.
// Extra GORM options (logger, plugins config) are forwarded to gorm.Open.
func OpenSQLite(path string, opts ...gorm.Option) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	if len(opts) == 0 {
		opts = []gorm.Option{&gorm.Config{}}
	}
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), opts...)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Pool: WAL serves readers concurrently; writers queue on busy_timeout.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Partial and expression indexes GORM tags cannot express. Each statement is
// executed on its own; multi-statement Exec is unreliable on this driver.
var connectionIndexes = []string{
	// one pending request per directed (sender, receiver)
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_connections_pending_pair
		ON connections (sender_id, receiver_id) WHERE status = 'pending'`,
	// one accepted connection per unordered pair
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_connections_accepted_pair
		ON connections (min(sender_id, receiver_id), max(sender_id, receiver_id)) WHERE status = 'accepted'`,
}

// AutoMigrate creates or updates every table the service owns, then the
// partial unique indexes on connections.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Post{},
		&domain.Connection{},
		&domain.ConnectionRestriction{},
		&domain.Message{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}
	for _, stmt := range connectionIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
