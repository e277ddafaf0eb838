package datastore

import (
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/caselink/contactsync/internal/errors"
)

// UpsertCommunication creates the communication if its remote event ID is
// unseen, otherwise updates the existing row in place. Reports whether a new
// row was created.
func (ds *DataStore) UpsertCommunication(comm *Communication) (bool, error) {
	if ds.DB == nil {
		return false, errUninitialized()
	}
	if comm.RemoteID == "" {
		return false, errors.Newf("communication remote ID is required").
			Category(errors.CategoryValidation).
			Component("datastore").
			Build()
	}

	created := false
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing Communication
		err := tx.Where("remote_id = ?", comm.RemoteID).First(&existing).Error
		switch {
		case err == nil:
			comm.ID = existing.ID
			comm.CreatedAt = existing.CreatedAt
			return tx.Save(comm).Error
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(comm).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, wrapDBError("upserting communication", err)
	}
	return created, nil
}

// GetCommunicationByRemoteID fetches a communication by provider event ID.
// Returns a CategoryNotFound error when no row matches.
func (ds *DataStore) GetCommunicationByRemoteID(remoteID string) (*Communication, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	var comm Communication
	if err := ds.DB.Where("remote_id = ?", remoteID).First(&comm).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("communication %q not found", remoteID).
				Category(errors.CategoryNotFound).
				Context("remote_id", remoteID).
				Component("datastore").
				Build()
		}
		return nil, wrapDBError("fetching communication", err)
	}
	return &comm, nil
}

// GetCommunicationsForClient returns a client's most recent communications.
func (ds *DataStore) GetCommunicationsForClient(clientID uint, limit int) ([]Communication, error) {
	if ds.DB == nil {
		return nil, errUninitialized()
	}
	if limit <= 0 {
		limit = 100
	}
	var comms []Communication
	err := ds.DB.
		Where("client_id = ?", clientID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&comms).Error
	if err != nil {
		return nil, wrapDBError("listing communications", err)
	}
	return comms, nil
}
