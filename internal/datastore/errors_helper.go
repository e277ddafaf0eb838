package datastore

import (
	"github.com/caselink/contactsync/internal/errors"
)

func errUninitialized() error {
	return errors.Newf("database connection is not initialized").
		Category(errors.CategoryDatabase).
		Component("datastore").
		Build()
}

func wrapDBError(operation string, err error) error {
	return errors.Newf("%s: %w", operation, err).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Component("datastore").
		Build()
}
