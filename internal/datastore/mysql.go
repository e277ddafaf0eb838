package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/errors"
)

// MySQLStore implements the store Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	cfg := settings.Output.MySQL
	if cfg.Host == "" || cfg.Database == "" || cfg.Username == "" {
		return errors.Newf("MySQL host, database and username are required").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}
	return nil
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	cfg := store.Settings.Output.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: createGormLogger(store.Settings.Debug),
	})
	if err != nil {
		logger.Error("failed to open MySQL database",
			"host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "error", err)
		return wrapDBError("opening MySQL database", err)
	}

	store.DB = db
	logger.Info("opened MySQL database", "host", cfg.Host, "database", cfg.Database)
	connInfo := fmt.Sprintf("%s@%s/%s", cfg.Username, cfg.Host, cfg.Database)
	return performAutoMigration(db, store.Settings.Debug, "MySQL", connInfo)
}

// Close releases the underlying connection pool.
func (store *MySQLStore) Close() error {
	return store.closeConnection()
}
