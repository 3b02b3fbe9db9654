package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/ringscope/internal/domain"
)

const pingTimeout = 5 * time.Second

// sqlitePragmas favour concurrent readers: analyses are written once and
// projected many times.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
}

// open connects to the configured driver and verifies the connection.
func open(cfg domain.RepositoryConfig) (*sql.DB, error) {
	name, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// dataSource returns the database/sql driver name and DSN for cfg.
func dataSource(cfg domain.RepositoryConfig) (string, string, error) {
	switch cfg.Driver {
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "./ringscope.db"
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		q := url.Values{}
		for _, p := range sqlitePragmas {
			q.Add("_pragma", p)
		}
		return "sqlite", "file:" + path + "?" + q.Encode(), nil

	case "postgres":
		host, port, db := cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB
		if host == "" {
			host = "localhost"
		}
		if port == 0 {
			port = 5432
		}
		if db == "" {
			db = "ringscope"
		}
		ssl := cfg.PostgresSSLMode
		if ssl == "" {
			ssl = "disable"
		}
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			host, port, cfg.PostgresUser, cfg.PostgresPassword, db, ssl), nil
	}
	return "", "", fmt.Errorf("unsupported driver: %s", cfg.Driver)
}
