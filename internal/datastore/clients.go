package datastore

import (
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/caselink/contactsync/internal/errors"
)

// GetClient fetches a client by primary key.
func (ds *DataStore) GetClient(id uint) (*Client, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	var client Client
	if err := ds.DB.First(&client, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("client %d not found", id).
				Category(errors.CategoryNotFound).
				Context("client_id", id).
				Component("datastore").
				Build()
		}
		return nil, wrapDBError("fetching client", err)
	}
	return &client, nil
}

// GetAllClients returns every client in the directory, oldest first.
func (ds *DataStore) GetAllClients() ([]Client, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	var clients []Client
	if err := ds.DB.Order("id ASC").Find(&clients).Error; err != nil {
		return nil, wrapDBError("listing clients", err)
	}
	return clients, nil
}

// GetClientsUpdatedSince returns clients whose record changed at or after the
// given time. Used by incremental sync runs.
func (ds *DataStore) GetClientsUpdatedSince(since time.Time) ([]Client, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	var clients []Client
	if err := ds.DB.Where("updated_at >= ?", since).Order("id ASC").Find(&clients).Error; err != nil {
		return nil, wrapDBError("listing updated clients", err)
	}
	return clients, nil
}

// GetClientByName fetches a client by its unique name. Returns a
// CategoryNotFound error when no client matches.
func (ds *DataStore) GetClientByName(name string) (*Client, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	var client Client
	if err := ds.DB.Where("name = ?", name).First(&client).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("client %q not found", name).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return nil, wrapDBError("fetching client by name", err)
	}
	return &client, nil
}

// GetClientByRemoteContactID fetches the client attached to a remote contact.
// Returns (nil, nil) when no client carries the attachment.
func (ds *DataStore) GetClientByRemoteContactID(remoteContactID string) (*Client, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	if remoteContactID == "" {
		return nil, nil
	}
	var client Client
	if err := ds.DB.Where("remote_contact_id = ?", remoteContactID).First(&client).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapDBError("fetching client by remote contact ID", err)
	}
	return &client, nil
}

// FindClientByPhones returns the first client whose primary or alternative
// phone matches any of the given numbers. Returns (nil, nil) on no match so
// callers can distinguish "unknown caller" from a database failure.
func (ds *DataStore) FindClientByPhones(phones []string) (*Client, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	if len(phones) == 0 {
		return nil, nil
	}
	var client Client
	err := ds.DB.
		Where("phone_number IN ?", phones).
		Or("alt_contact1_phone IN ?", phones).
		Or("alt_contact2_phone IN ?", phones).
		First(&client).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapDBError("finding client by phone", err)
	}
	return &client, nil
}

// SaveClient inserts or updates a client record.
func (ds *DataStore) SaveClient(client *Client) error {
	if ds.DB == nil {
		return errUninitialized()
	}
	if err := ds.DB.Save(client).Error; err != nil {
		return wrapDBError("saving client", err)
	}
	return nil
}

// CountClients returns the total number of clients in the directory.
func (ds *DataStore) CountClients() (int64, error) {
	if ds.DB == nil {
		return 0, errUninitialized()
	}
	var count int64
	if err := ds.DB.Model(&Client{}).Count(&count).Error; err != nil {
		return 0, wrapDBError("counting clients", err)
	}
	return count, nil
}

// AttachRemoteContactID records the remote contact a client resolved to.
// This is the single write the sync subsystem performs on client records.
func (ds *DataStore) AttachRemoteContactID(clientID uint, remoteContactID string) error {
	if ds.DB == nil {
		return errUninitialized()
	}
	result := ds.DB.Model(&Client{}).
		Where("id = ?", clientID).
		Update("remote_contact_id", remoteContactID)
	if result.Error != nil {
		return wrapDBError("attaching remote contact ID", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("client %d not found", clientID).
			Category(errors.CategoryNotFound).
			Context("client_id", clientID).
			Component("datastore").
			Build()
	}
	return nil
}
