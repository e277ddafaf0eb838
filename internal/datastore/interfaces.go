// interfaces.go: defines the interface for client directory and
// communication log database operations.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/caselink/contactsync/internal/conf"
)

// Interface abstracts the underlying database implementation. The sync
// orchestrator and communications importer depend on this, never on a
// concrete store.
type Interface interface {
	Open() error
	Close() error
	Ping() error

	GetClient(id uint) (*Client, error)
	GetAllClients() ([]Client, error)
	GetClientsUpdatedSince(since time.Time) ([]Client, error)
	GetClientByName(name string) (*Client, error)
	GetClientByRemoteContactID(remoteContactID string) (*Client, error)
	FindClientByPhones(phones []string) (*Client, error)
	SaveClient(client *Client) error
	CountClients() (int64, error)
	AttachRemoteContactID(clientID uint, remoteContactID string) error

	UpsertCommunication(comm *Communication) (created bool, err error)
	GetCommunicationByRemoteID(remoteID string) (*Communication, error)
	GetCommunicationsForClient(clientID uint, limit int) ([]Communication, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store backed by whichever output database the settings
// enable. Returns nil when no database output is enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Ping verifies the underlying connection is alive.
func (ds *DataStore) Ping() error {
	if ds.DB == nil {
		return errUninitialized()
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return wrapDBError("acquiring connection pool", err)
	}
	return sqlDB.Ping()
}

func (ds *DataStore) closeConnection() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return wrapDBError("acquiring connection pool", err)
	}
	return sqlDB.Close()
}
