package sync

import (
	"context"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/datastore"
	"github.com/caselink/contactsync/internal/dedup"
	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// file logger rotation worker lives for the process lifetime
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}

// fakeProvider is an in-memory provider API double.
type fakeProvider struct {
	mu          stdsync.Mutex
	contacts    map[string]provider.Contact
	nextID      int
	createCalls int
	updateCalls int
	pingGate    chan struct{}
	failCreates map[string]error // keyed by contact name
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		contacts:    make(map[string]provider.Contact),
		failCreates: make(map[string]error),
	}
}

func (f *fakeProvider) ListContacts(ctx context.Context, pageToken string, pageSize int) ([]provider.Contact, string, error) {
	all, err := f.ListAllContacts(ctx)
	return all, "", err
}

func (f *fakeProvider) ListAllContacts(ctx context.Context) ([]provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeProvider) GetContact(ctx context.Context, id string) (*provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return nil, errors.Newf("contact %q not found", id).
			Category(errors.CategoryNotFound).
			Component("provider").
			Build()
	}
	return &c, nil
}

func (f *fakeProvider) CreateContact(ctx context.Context, req *provider.ContactRequest) (*provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if err, ok := f.failCreates[req.Name]; ok {
		return nil, err
	}
	f.nextID++
	contact := provider.Contact{
		ID:           fmt.Sprintf("c-%d", f.nextID),
		ExternalID:   req.ExternalID,
		Name:         req.Name,
		PhoneNumbers: req.PhoneNumbers,
		Email:        req.Email,
		CustomFields: req.CustomFields,
	}
	f.contacts[contact.ID] = contact
	return &contact, nil
}

func (f *fakeProvider) UpdateContact(ctx context.Context, id string, req *provider.ContactRequest) (*provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	existing, ok := f.contacts[id]
	if !ok {
		return nil, errors.Newf("contact %q not found", id).
			Category(errors.CategoryNotFound).
			Component("provider").
			Build()
	}
	existing.Name = req.Name
	existing.ExternalID = req.ExternalID
	existing.PhoneNumbers = req.PhoneNumbers
	existing.Email = req.Email
	existing.CustomFields = req.CustomFields
	f.contacts[id] = existing
	return &existing, nil
}

func (f *fakeProvider) DeleteContact(ctx context.Context, id string) error { return nil }

func (f *fakeProvider) SearchContacts(ctx context.Context, term string) ([]provider.Contact, error) {
	return nil, nil
}

func (f *fakeProvider) GetContactByExternalID(ctx context.Context, externalID string) (*provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.ExternalID == externalID {
			return &c, nil
		}
	}
	return nil, errors.Newf("no contact with external ID %q", externalID).
		Category(errors.CategoryNotFound).
		Component("provider").
		Build()
}

func (f *fakeProvider) ListCalls(ctx context.Context, since time.Time, pageSize int) ([]provider.Call, error) {
	return nil, nil
}

func (f *fakeProvider) ListConversations(ctx context.Context, since time.Time, pageSize int) ([]provider.Conversation, error) {
	return nil, nil
}

func (f *fakeProvider) ListPhoneNumbers(ctx context.Context) ([]provider.PhoneNumber, error) {
	return nil, nil
}

func (f *fakeProvider) Ping(ctx context.Context) error {
	f.mu.Lock()
	gate := f.pingGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeProvider) Close() {}

var _ provider.Interface = (*fakeProvider)(nil)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "sync-test.db")
	settings.Sync.BatchSize = 50
	settings.Sync.ContinueOnError = true
	settings.Provider.CustomFields.County = "County"
	return settings
}

func newTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestEndToEndCreateThenUpdate(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	engine := dedup.NewEngine(api, 0)
	orch := New(api, store, engine, settings)

	client := &datastore.Client{Name: "Jane Doe", PhoneNumber: "7065551234"}
	require.NoError(t, store.SaveClient(client))

	first, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.ClientsProcessed)
	assert.Equal(t, 1, first.TotalContactsCreated)
	assert.Equal(t, 0, first.TotalContactsUpdated)
	assert.Equal(t, StateSuccess, orch.State())

	// The created contact carries the standardized phone and external id.
	remote, err := api.GetContactByExternalID(context.Background(), "client_"+fmt.Sprint(client.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{"+17065551234"}, remote.PhoneNumbers)

	// An unchanged second run recognizes the external-id duplicate and
	// updates instead of creating.
	second, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.TotalContactsCreated)
	assert.Equal(t, 1, second.TotalContactsUpdated)
}

func TestMutualExclusion(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	api.pingGate = make(chan struct{})
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return orch.State() == StateRunning
	}, time.Second, time.Millisecond)

	_, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	close(api.pingGate)
	<-done
}

func TestStartSyncClaimsStateBeforeReturning(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	api.pingGate = make(chan struct{})
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	// Concurrent starts race for the running state; exactly one may win even
	// though neither run has made any progress yet.
	results := make(chan error, 2)
	for range 2 {
		go func() {
			results <- orch.StartSync(context.Background(), Options{Mode: ModeFull})
		}()
	}

	var started, rejected int
	for range 2 {
		if err := <-results; err != nil {
			assert.True(t, errors.IsCategory(err, errors.CategoryState))
			rejected++
		} else {
			started++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, rejected)

	close(api.pingGate)
	require.Eventually(t, func() bool {
		return orch.State() != StateRunning
	}, time.Second, time.Millisecond)
	require.NotNil(t, orch.LastResult())
}

func TestDryRunSkipsRemoteWrites(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Ben Ortiz", PhoneNumber: "4045550100"}))

	result, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull, DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.TotalContactsCreated)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.createCalls)
	assert.Zero(t, api.updateCalls)
	assert.Empty(t, api.contacts)
}

func TestInvalidPhoneCountsAsSkipped(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	require.NoError(t, store.SaveClient(&datastore.Client{Name: "No Phone", PhoneNumber: "TBD"}))

	result, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.TotalContactsSkipped)
	assert.Zero(t, result.TotalContactsCreated)
}

func TestContinueOnErrorIsolatesFailures(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	api.failCreates["Bad Client"] = errors.Newf("remote validation rejected contact").
		Category(errors.CategoryValidation).
		Component("provider").
		Build()
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Bad Client", PhoneNumber: "4045550111"}))
	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Good Client", PhoneNumber: "4045550122"}))

	result, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Bad Client", result.Errors[0].ClientName)
	assert.Equal(t, 1, result.TotalContactsCreated)
	assert.Equal(t, StateFailure, orch.State())
}

func TestAbortWhenContinueOnErrorDisabled(t *testing.T) {
	settings := testSettings(t)
	settings.Sync.ContinueOnError = false
	store := newTestStore(t, settings)
	api := newFakeProvider()
	api.failCreates["Bad Client"] = errors.Newf("remote validation rejected contact").
		Category(errors.CategoryValidation).
		Component("provider").
		Build()
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Bad Client", PhoneNumber: "4045550111"}))

	_, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.Error(t, err)
	assert.Equal(t, StateFailure, orch.State())
}

func TestProgressSubscribersSeeFinalCounts(t *testing.T) {
	settings := testSettings(t)
	settings.Sync.BatchSize = 1
	store := newTestStore(t, settings)
	api := newFakeProvider()
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Jane Doe", PhoneNumber: "7065551234"}))
	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Ben Ortiz", PhoneNumber: "4045550100"}))

	var mu stdsync.Mutex
	var snapshots []Progress
	orch.Subscribe(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, p)
	})

	result, err := orch.SyncContacts(context.Background(), Options{Mode: ModeFull})
	require.NoError(t, err)
	require.True(t, result.Success)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 2)
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, 2, last.Processed)
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, 2, last.Created)
}

func TestIncrementalModeFiltersByUpdatedSince(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	api := newFakeProvider()
	orch := New(api, store, dedup.NewEngine(api, 0), settings)

	require.NoError(t, store.SaveClient(&datastore.Client{Name: "Old Client", PhoneNumber: "4045550133"}))

	result, err := orch.SyncContacts(context.Background(), Options{
		Mode:  ModeIncremental,
		Since: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.ClientsProcessed)
	assert.Zero(t, result.TotalContactsCreated)
}
