// Package mapper converts practice client records into outbound contact
// payloads. Everything here is pure: no I/O, no shared state, deterministic
// output for a given client and key map.
package mapper

import (
	"fmt"
	"strconv"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/datastore"
	"github.com/caselink/contactsync/internal/provider"
)

// ExternalID returns the deterministic external ID for a client's main
// contact.
func ExternalID(clientID uint) string {
	return fmt.Sprintf("client_%d", clientID)
}

// AlternativeExternalID returns the external ID for a client's nth
// alternative contact (1-based).
func AlternativeExternalID(clientID uint, n int) string {
	return fmt.Sprintf("client_%d_alt_%d", clientID, n)
}

// MapClientToContacts converts a client record into zero or more outbound
// contact payloads: the client's own entry first, then each alternative
// contact person carrying a valid phone. A client whose primary phone fails
// validation yields no contacts at all; alternatives never ship without the
// main entry they belong to.
func MapClientToContacts(client *datastore.Client, keys *conf.CustomFieldKeys) []provider.ContactRequest {
	if client == nil || client.Name == "" {
		return nil
	}
	if !ValidatePhone(client.PhoneNumber) {
		return nil
	}
	mainPhone, ok := StandardizePhone(client.PhoneNumber)
	if !ok {
		return nil
	}

	contacts := []provider.ContactRequest{{
		ExternalID:   ExternalID(client.ID),
		Name:         client.Name,
		PhoneNumbers: []string{mainPhone},
		Email:        client.Email,
		CustomFields: mainCustomFields(client, keys),
	}}

	alternatives := []struct {
		name         string
		phone        string
		relationship string
	}{
		{client.AltContact1Name, client.AltContact1Phone, client.AltContact1Relationship},
		{client.AltContact2Name, client.AltContact2Phone, client.AltContact2Relationship},
	}
	for i, alt := range alternatives {
		if !ValidatePhone(alt.phone) {
			continue
		}
		altPhone, ok := StandardizePhone(alt.phone)
		if !ok {
			continue
		}
		contacts = append(contacts, provider.ContactRequest{
			ExternalID:   AlternativeExternalID(client.ID, i+1),
			Name:         alternativeDisplayName(client.Name, alt.relationship),
			PhoneNumbers: []string{altPhone},
			CustomFields: alternativeCustomFields(client, keys, alt.name, alt.relationship, altPhone),
		})
	}

	return contacts
}

// alternativeDisplayName keeps alternative entries searchable under the
// client they belong to.
func alternativeDisplayName(clientName, relationship string) string {
	if relationship == "" {
		return clientName + " - Alternative Contact"
	}
	return clientName + " - " + relationship
}

func mainCustomFields(client *datastore.Client, keys *conf.CustomFieldKeys) map[string]string {
	fields := map[string]string{}
	setField(fields, keys.ClientType, client.ClientType)
	setField(fields, keys.DateOfBirth, client.DateOfBirth)
	setField(fields, keys.County, client.County)
	setField(fields, keys.IntakeDate, client.IntakeDate)
	setField(fields, keys.CaseType, client.CaseType)
	setField(fields, keys.Arrested, strconv.FormatBool(client.Arrested))
	setField(fields, keys.Incarcerated, strconv.FormatBool(client.Incarcerated))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func alternativeCustomFields(client *datastore.Client, keys *conf.CustomFieldKeys, contactName, relationship, phone string) map[string]string {
	fields := map[string]string{}
	setField(fields, keys.PrimaryClientName, client.Name)
	setField(fields, keys.Relationship, relationship)
	setField(fields, keys.ContactPersonName, contactName)
	setField(fields, keys.AlternativeContactNumber, phone)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// setField adds a custom field only when the deployment configured a key for
// it and the client actually carries a value.
func setField(fields map[string]string, key, value string) {
	if key == "" || value == "" {
		return
	}
	fields[key] = value
}
