package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// gooseMu serializes goose, which keeps its dialect and filesystem in package
// state.
var gooseMu sync.Mutex

// Open connects to the database for driver ("postgres" or "sqlite3") and
// checks the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var name string
	switch driver {
	case "postgres":
		name = "pgx"
	case "sqlite3":
		name = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s database: %w", driver, err)
	}

	if driver == "sqlite3" {
		// One writer; also keeps an in-memory database alive across queries.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not reach %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate applies the embedded migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("could not set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations/"+driver); err != nil {
		return fmt.Errorf("could not migrate database: %w", err)
	}
	return nil
}
