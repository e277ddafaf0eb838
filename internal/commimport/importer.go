// Package commimport ingests the provider's call and conversation events
// into the practice's communication log. Records are upserted by remote
// event ID, and each event is resolved to a client record, creating a
// placeholder client for unknown callers.
package commimport

import (
	"context"
	"fmt"
	"time"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/datastore"
	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/logging"
	"github.com/caselink/contactsync/internal/mapper"
	"github.com/caselink/contactsync/internal/observability/metrics"
	"github.com/caselink/contactsync/internal/provider"
)

var logger = logging.ForService("commimport")

// DefaultLookback bounds an import when no explicit start time is given.
const DefaultLookback = 24 * time.Hour

// Result summarizes one import pass.
type Result struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Since      time.Time `json:"since"`

	CallsSeen         int `json:"callsSeen"`
	ConversationsSeen int `json:"conversationsSeen"`
	Created           int `json:"created"`
	Updated           int `json:"updated"`
	ClientsCreated    int `json:"clientsCreated"`

	Errors []string `json:"errors,omitempty"`
}

// Importer pulls communication events through the shared API client.
type Importer struct {
	client   provider.Interface
	store    datastore.Interface
	pageSize int
	lookback time.Duration
	metrics  *metrics.SyncMetrics
}

// New creates an importer using the lookback and page size from settings.
func New(client provider.Interface, store datastore.Interface, settings *conf.Settings) *Importer {
	lookback := time.Duration(settings.Import.LookbackHours) * time.Hour
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Importer{
		client:   client,
		store:    store,
		pageSize: settings.Import.PageSize,
		lookback: lookback,
	}
}

// SetMetrics attaches Prometheus collectors. Optional.
func (im *Importer) SetMetrics(m *metrics.SyncMetrics) {
	im.metrics = m
}

// Import pulls calls and conversations newer than since (or the configured
// lookback when zero) and upserts them into the communication log. Per-event
// failures are collected, not fatal.
func (im *Importer) Import(ctx context.Context, since time.Time) (*Result, error) {
	if since.IsZero() {
		since = time.Now().Add(-im.lookback)
	}
	result := &Result{StartedAt: time.Now(), Since: since}

	calls, err := im.client.ListCalls(ctx, since, im.pageSize)
	if err != nil {
		return nil, err
	}
	result.CallsSeen = len(calls)
	for i := range calls {
		if err := im.importCall(ctx, &calls[i], result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("call %s: %v", calls[i].ID, err))
		}
	}

	conversations, err := im.client.ListConversations(ctx, since, im.pageSize)
	if err != nil {
		return nil, err
	}
	result.ConversationsSeen = len(conversations)
	for i := range conversations {
		if err := im.importConversation(ctx, &conversations[i], result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("conversation %s: %v", conversations[i].ID, err))
		}
	}

	result.FinishedAt = time.Now()
	logger.Info("communications import finished",
		"since", since,
		"calls", result.CallsSeen,
		"conversations", result.ConversationsSeen,
		"created", result.Created,
		"updated", result.Updated,
		"clients_created", result.ClientsCreated,
		"errors", len(result.Errors))
	return result, nil
}

func (im *Importer) importCall(ctx context.Context, call *provider.Call, result *Result) error {
	phone := call.From
	if call.Direction == "outgoing" || call.Direction == "outbound" {
		phone = call.To
	}

	clientID, err := im.resolveClient(ctx, call.ContactID, phone, result)
	if err != nil {
		return err
	}

	comm := &datastore.Communication{
		RemoteID:        call.ID,
		ClientID:        clientID,
		Type:            datastore.CommunicationTypeCall,
		Direction:       call.Direction,
		PhoneNumber:     phone,
		DurationSeconds: call.Duration,
		OccurredAt:      call.CreatedAt,
	}
	created, err := im.store.UpsertCommunication(comm)
	if err != nil {
		return err
	}
	im.count(datastore.CommunicationTypeCall, created, result)
	return nil
}

func (im *Importer) importConversation(ctx context.Context, conv *provider.Conversation, result *Result) error {
	clientID, err := im.resolveClient(ctx, conv.ContactID, conv.PhoneNumber, result)
	if err != nil {
		return err
	}

	comm := &datastore.Communication{
		RemoteID:    conv.ID,
		ClientID:    clientID,
		Type:        datastore.CommunicationTypeConversation,
		PhoneNumber: conv.PhoneNumber,
		Body:        conv.LastMessage,
		OccurredAt:  conv.LastActivityAt,
	}
	created, err := im.store.UpsertCommunication(comm)
	if err != nil {
		return err
	}
	im.count(datastore.CommunicationTypeConversation, created, result)
	return nil
}

func (im *Importer) count(commType string, created bool, result *Result) {
	action := "updated"
	if created {
		result.Created++
		action = "created"
	} else {
		result.Updated++
	}
	if im.metrics != nil {
		im.metrics.CommsImported.WithLabelValues(commType, action).Inc()
	}
}

// resolveClient finds the client a communication belongs to: first by an
// already-attached remote contact id, then by phone, and as a last resort by
// creating a placeholder client. First-time resolutions write the remote
// contact id back onto the client record.
func (im *Importer) resolveClient(ctx context.Context, remoteContactID, phone string, result *Result) (uint, error) {
	if remoteContactID != "" {
		client, err := im.store.GetClientByRemoteContactID(remoteContactID)
		if err != nil {
			return 0, err
		}
		if client != nil {
			return client.ID, nil
		}
	}

	client, err := im.store.FindClientByPhones(phoneVariants(phone))
	if err != nil {
		return 0, err
	}
	if client != nil {
		if remoteContactID != "" && client.RemoteContactID == "" {
			if err := im.store.AttachRemoteContactID(client.ID, remoteContactID); err != nil {
				return 0, err
			}
		}
		return client.ID, nil
	}

	return im.createPlaceholderClient(ctx, remoteContactID, phone, result)
}

// createPlaceholderClient records an unknown caller so the communication has
// somewhere to land. Named after the remote contact when one exists.
func (im *Importer) createPlaceholderClient(ctx context.Context, remoteContactID, phone string, result *Result) (uint, error) {
	name := ""
	if remoteContactID != "" {
		remote, err := im.client.GetContact(ctx, remoteContactID)
		if err != nil && !errors.IsNotFound(err) {
			return 0, err
		}
		if err == nil {
			name = remote.Name
		}
	}
	if name == "" {
		if phone == "" {
			name = "Unknown Caller"
		} else {
			name = "Unknown Caller " + phone
		}
	}

	client := &datastore.Client{
		Name:            name,
		PhoneNumber:     phone,
		RemoteContactID: remoteContactID,
		CreatedByImport: true,
	}
	if err := im.store.SaveClient(client); err != nil {
		// The name may collide with an existing placeholder from a
		// previous pass; reuse that record instead.
		existing, lookupErr := im.store.GetClientByName(name)
		if lookupErr != nil {
			return 0, err
		}
		return existing.ID, nil
	}

	result.ClientsCreated++
	logger.Debug("created placeholder client", "client_id", client.ID, "name", name)
	return client.ID, nil
}

// phoneVariants widens a phone lookup to the formats practice staff store.
func phoneVariants(phone string) []string {
	if phone == "" {
		return nil
	}
	variants := []string{phone}
	if standardized, ok := mapper.StandardizePhone(phone); ok && standardized != phone {
		variants = append(variants, standardized)
	}
	if normalized := mapper.NormalizePhone(phone); normalized != "" && normalized != phone {
		variants = append(variants, normalized)
	}
	return variants
}
