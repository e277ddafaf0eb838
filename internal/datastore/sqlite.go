package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/errors"
)

// SQLiteStore implements the store Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return errors.Newf("SQLite database path is not configured").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}
	return nil
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := filepath.Clean(store.Settings.Output.SQLite.Path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrapDBError("creating database directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: createGormLogger(store.Settings.Debug),
	})
	if err != nil {
		return wrapDBError("opening SQLite database", err)
	}

	store.DB = db
	logger.Info("opened SQLite database", "path", path)
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

// Close releases the underlying connection pool.
func (store *SQLiteStore) Close() error {
	return store.closeConnection()
}
