package service

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"passgate/internal/assets"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

type DatabaseServiceConfig struct {
	DatabasePath string
}

type DatabaseService struct {
	config   DatabaseServiceConfig
	database *sql.DB
}

func NewDatabaseService(config DatabaseServiceConfig) *DatabaseService {
	return &DatabaseService{
		config: config,
	}
}

func (ds *DatabaseService) Init() error {
	if ds.config.DatabasePath != ":memory:" {
		dir := filepath.Dir(ds.config.DatabasePath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", ds.config.DatabasePath)

	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := ds.migrateDatabase(db); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	ds.database = db
	return nil
}

func (ds *DatabaseService) migrateDatabase(db *sql.DB) error {
	migrations, err := iofs.New(assets.Migrations, "migrations")

	if err != nil {
		return fmt.Errorf("failed to create migrations source: %w", err)
	}

	target, err := sqlite3.WithInstance(db, &sqlite3.Config{})

	if err != nil {
		return fmt.Errorf("failed to create sqlite3 instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", migrations, "passgate", target)

	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	return migrator.Up()
}

func (ds *DatabaseService) GetDatabase() *sql.DB {
	return ds.database
}
