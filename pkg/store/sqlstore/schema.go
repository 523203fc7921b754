package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/database/sqlserver"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/sqlserver/*.sql
var migrations embed.FS

// migrateSchema brings the documents table up to date. The migrate instance is
// not closed because that would close the caller's *sql.DB.
func migrateSchema(db *sql.DB, dialect Dialect) error {
	sourceDriver, err := iofs.New(migrations, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}

	var dbDriver database.Driver
	switch dialect {
	case DialectSQLite:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DialectSQLServer:
		dbDriver, err = sqlserver.WithInstance(db, &sqlserver.Config{})
	default:
		return fmt.Errorf("unknown sql dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migrate driver: %w", dialect, err)
	}

	mig, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}
