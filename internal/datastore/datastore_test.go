package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/errors"
)

func newTestStore(t *testing.T) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "contactsync-test.db")

	store := New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestClientRoundTrip(t *testing.T) {
	store := newTestStore(t)

	client := &Client{
		Name:        "Jane Doe",
		PhoneNumber: "+17065551234",
		Email:       "jane@example.com",
		County:      "Fulton",
		CaseType:    "Misdemeanor",
	}
	require.NoError(t, store.SaveClient(client))
	require.NotZero(t, client.ID)

	fetched, err := store.GetClient(client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", fetched.Name)
	assert.Equal(t, "+17065551234", fetched.PhoneNumber)

	byName, err := store.GetClientByName("Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, client.ID, byName.ID)

	count, err := store.CountClients()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetClientNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetClient(999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetClientsUpdatedSince(t *testing.T) {
	store := newTestStore(t)

	old := &Client{Name: "Old Client", PhoneNumber: "+14045550101"}
	require.NoError(t, store.SaveClient(old))

	cutoff := time.Now().Add(time.Minute)
	recent, err := store.GetClientsUpdatedSince(cutoff)
	require.NoError(t, err)
	assert.Empty(t, recent)

	all, err := store.GetClientsUpdatedSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFindClientByPhones(t *testing.T) {
	store := newTestStore(t)

	client := &Client{
		Name:             "Ben Ortiz",
		PhoneNumber:      "+14045550100",
		AltContact1Name:  "Rosa Ortiz",
		AltContact1Phone: "+14045550177",
	}
	require.NoError(t, store.SaveClient(client))

	byPrimary, err := store.FindClientByPhones([]string{"+14045550100"})
	require.NoError(t, err)
	require.NotNil(t, byPrimary)
	assert.Equal(t, client.ID, byPrimary.ID)

	byAlt, err := store.FindClientByPhones([]string{"+15555550000", "+14045550177"})
	require.NoError(t, err)
	require.NotNil(t, byAlt)
	assert.Equal(t, client.ID, byAlt.ID)

	missing, err := store.FindClientByPhones([]string{"+19995550000"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAttachRemoteContactID(t *testing.T) {
	store := newTestStore(t)

	client := &Client{Name: "Cora Wells", PhoneNumber: "+14045550111"}
	require.NoError(t, store.SaveClient(client))

	require.NoError(t, store.AttachRemoteContactID(client.ID, "c-77"))

	fetched, err := store.GetClient(client.ID)
	require.NoError(t, err)
	assert.Equal(t, "c-77", fetched.RemoteContactID)

	err = store.AttachRemoteContactID(9999, "c-88")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpsertCommunicationCreateThenUpdate(t *testing.T) {
	store := newTestStore(t)

	client := &Client{Name: "Dan Pruitt", PhoneNumber: "+14045550122"}
	require.NoError(t, store.SaveClient(client))

	comm := &Communication{
		RemoteID:        "call-1001",
		ClientID:        client.ID,
		Type:            CommunicationTypeCall,
		Direction:       "inbound",
		PhoneNumber:     "+14045550122",
		DurationSeconds: 45,
		OccurredAt:      time.Now().UTC().Truncate(time.Second),
	}

	created, err := store.UpsertCommunication(comm)
	require.NoError(t, err)
	assert.True(t, created)

	// Same remote event with amended data updates the existing row.
	updated := *comm
	updated.ID = 0
	updated.DurationSeconds = 90
	created, err = store.UpsertCommunication(&updated)
	require.NoError(t, err)
	assert.False(t, created)

	fetched, err := store.GetCommunicationByRemoteID("call-1001")
	require.NoError(t, err)
	assert.Equal(t, 90, fetched.DurationSeconds)

	comms, err := store.GetCommunicationsForClient(client.ID, 10)
	require.NoError(t, err)
	assert.Len(t, comms, 1)
}

func TestGetCommunicationByRemoteIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCommunicationByRemoteID("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
