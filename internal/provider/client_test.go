package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/observability/metrics"
)

// newTestClient builds a client with generous quotas so rate limiting never
// interferes with a test unless the test lowers them deliberately.
func newTestClient(t *testing.T, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		APIKey:            "test-key",
		BaseURL:           "https://api.example.test/v1",
		RequestsPerMinute: 100000,
		RequestsPerHour:   1000000,
		MaxConcurrent:     5,
		Timeout:           5 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	httpmock.ActivateNonDefault(client.httpClient.StandardClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestUnmarshalableBodyFailsWithoutRetry(t *testing.T) {
	client := newTestClient(t, nil)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewProviderMetrics(registry)
	require.NoError(t, err)
	client.SetMetrics(m)

	httpmock.RegisterResponder(http.MethodPost, "https://api.example.test/v1/contacts",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	// A channel cannot be marshalled; the failure is deterministic and must
	// surface immediately rather than burn the retry budget.
	err = client.request(context.Background(), http.MethodPost, "/contacts", nil, make(chan int), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, httpmock.GetTotalCallCount())
	assert.Zero(t, testutil.ToFloat64(m.RetriesTotal))
}

func TestGetContact(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts/c-1",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"c-1","externalId":"client_42","name":"Ada Smith","phoneNumbers":["+17068774587"]}`))

	contact, err := client.GetContact(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", contact.ID)
	assert.Equal(t, "client_42", contact.ExternalID)
	assert.Equal(t, []string{"+17068774587"}, contact.PhoneNumbers)
}

func TestGetContactNotFound(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts/missing",
		httpmock.NewStringResponder(http.StatusNotFound, `{"code":"not_found","message":"contact not found"}`))

	_, err := client.GetContact(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	client := newTestClient(t, nil)

	var calls atomic.Int32
	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts/c-7",
		func(req *http.Request) (*http.Response, error) {
			if calls.Add(1) <= 2 {
				return httpmock.NewStringResponse(http.StatusTooManyRequests, `{"message":"slow down"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"c-7","name":"Ben Ortiz"}`), nil
		})

	contact, err := client.GetContact(context.Background(), "c-7")
	require.NoError(t, err)
	assert.Equal(t, "c-7", contact.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	client := newTestClient(t, nil)

	var calls atomic.Int32
	httpmock.RegisterResponder(http.MethodPost, "https://api.example.test/v1/contacts",
		func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return httpmock.NewStringResponse(http.StatusBadRequest, `{"code":"invalid","message":"bad payload"}`), nil
		})

	_, err := client.CreateContact(context.Background(), &ContactRequest{Name: "Bad Payload"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryGivesUpAfterConfiguredAttempts(t *testing.T) {
	client := newTestClient(t, func(cfg *Config) {
		cfg.RetryAttempts = 2
	})

	var calls atomic.Int32
	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts/c-9",
		func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return httpmock.NewStringResponse(http.StatusInternalServerError, `{"message":"boom"}`), nil
		})

	_, err := client.GetContact(context.Background(), "c-9")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	// initial attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestConcurrencyGateBoundsInFlightRequests(t *testing.T) {
	const maxConcurrent = 2
	client := newTestClient(t, func(cfg *Config) {
		cfg.MaxConcurrent = maxConcurrent
	})

	var inFlight, peak atomic.Int32
	httpmock.RegisterResponder(http.MethodGet, `=~^https://api\.example\.test/v1/contacts/.+`,
		func(req *http.Request) (*http.Response, error) {
			now := inFlight.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"c","name":"X"}`), nil
		})

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetContact(context.Background(), fmt.Sprintf("c-%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrent))
	assert.Equal(t, 10, httpmock.GetTotalCallCount())
}

func TestListContactsPagination(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts",
		func(req *http.Request) (*http.Response, error) {
			switch req.URL.Query().Get("page_token") {
			case "":
				return httpmock.NewStringResponse(http.StatusOK,
					`{"data":[{"id":"c-1","name":"A"},{"id":"c-2","name":"B"}],"nextPageToken":"tok-2"}`), nil
			case "tok-2":
				return httpmock.NewStringResponse(http.StatusOK,
					`{"data":[{"id":"c-3","name":"C"}],"nextPageToken":""}`), nil
			default:
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"bad token"}`), nil
			}
		})

	contacts, err := client.ListAllContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, "c-3", contacts[2].ID)
}

func TestSearchContactsFallsBackToListing(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts",
		func(req *http.Request) (*http.Response, error) {
			// Older deployments reject the search parameter outright.
			if req.URL.Query().Get("search") != "" {
				return httpmock.NewStringResponse(http.StatusNotFound, `{"message":"unknown parameter"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"data":[{"id":"c-1","name":"Maria Lopez"},{"id":"c-2","name":"John Carter"},{"id":"c-3","name":"maria gonzalez"}]}`), nil
		})

	matched, err := client.SearchContacts(context.Background(), "Maria")
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "c-1", matched[0].ID)
	assert.Equal(t, "c-3", matched[1].ID)
}

func TestGetContactByExternalID(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "client_42", req.URL.Query().Get("externalId"))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"data":[{"id":"c-1","externalId":"client_42","name":"Ada Smith"}]}`), nil
		})

	contact, err := client.GetContactByExternalID(context.Background(), "client_42")
	require.NoError(t, err)
	assert.Equal(t, "c-1", contact.ID)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/contacts",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))

	_, err = client.GetContactByExternalID(context.Background(), "client_99")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestPhoneNumberListingIsCached(t *testing.T) {
	client := newTestClient(t, nil)

	var calls atomic.Int32
	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/phone-numbers",
		func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return httpmock.NewStringResponse(http.StatusOK,
				`{"data":[{"id":"pn-1","number":"+14045550100","name":"Main Line"}]}`), nil
		})

	first, err := client.ListPhoneNumbers(context.Background())
	require.NoError(t, err)
	second, err := client.ListPhoneNumbers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListCallsWalksPages(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.test/v1/calls",
		func(req *http.Request) (*http.Response, error) {
			switch req.URL.Query().Get("page") {
			case "1":
				return httpmock.NewStringResponse(http.StatusOK,
					`{"data":[{"id":"call-1","direction":"inbound","from":"+14045550100"}],"page":1,"totalPages":2}`), nil
			case "2":
				return httpmock.NewStringResponse(http.StatusOK,
					`{"data":[{"id":"call-2","direction":"outbound","to":"+14045550100"}],"page":2,"totalPages":2}`), nil
			default:
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"bad page"}`), nil
			}
		})

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	calls, err := client.ListCalls(context.Background(), since, 50)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "call-2", calls[1].ID)
}

func TestRemoteRateLimitHeadersDelayNextRequest(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, nil)

	header := http.Header{}
	header.Set("x-ratelimit-remaining", "0")
	header.Set("x-ratelimit-reset", "1")
	client.updateRateLimitState(header)

	client.remoteMu.Lock()
	assert.True(t, client.remoteKnown)
	assert.Equal(t, 0, client.remoteRemaining)
	wait := time.Until(client.remoteReset)
	client.remoteMu.Unlock()

	assert.Greater(t, wait, 500*time.Millisecond)
	assert.LessOrEqual(t, wait, time.Second)

	// A fresh remaining count clears the wait.
	header.Set("x-ratelimit-remaining", "10")
	client.updateRateLimitState(header)

	client.remoteMu.Lock()
	assert.Equal(t, 10, client.remoteRemaining)
	client.remoteMu.Unlock()
}

func TestQuotaWindowResetsAfterExpiry(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(cfg *Config) {
		cfg.RequestsPerMinute = 2
	})

	ctx := context.Background()
	require.NoError(t, client.waitQuota(ctx))
	require.NoError(t, client.waitQuota(ctx))

	client.quotaMu.Lock()
	assert.Equal(t, 2, client.minuteCount)
	// Force the window into the past so the next wait resets it instead of
	// sleeping out the remainder of the minute.
	client.minuteReset = time.Now().Add(-time.Second)
	client.quotaMu.Unlock()

	require.NoError(t, client.waitQuota(ctx))

	client.quotaMu.Lock()
	assert.Equal(t, 1, client.minuteCount)
	client.quotaMu.Unlock()
}

func TestQuotaWaitHonoursCancellation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(cfg *Config) {
		cfg.RequestsPerMinute = 1
	})

	ctx := context.Background()
	require.NoError(t, client.waitQuota(ctx))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := client.waitQuota(cancelled)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}
