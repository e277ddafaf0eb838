package provider

import (
	"context"
	"time"
)

// Interface is the surface the sync engine, duplicate detector and
// communications importer consume. *Client satisfies it; tests substitute
// mocks.
type Interface interface {
	ListContacts(ctx context.Context, pageToken string, pageSize int) ([]Contact, string, error)
	ListAllContacts(ctx context.Context) ([]Contact, error)
	GetContact(ctx context.Context, id string) (*Contact, error)
	CreateContact(ctx context.Context, req *ContactRequest) (*Contact, error)
	UpdateContact(ctx context.Context, id string, req *ContactRequest) (*Contact, error)
	DeleteContact(ctx context.Context, id string) error
	SearchContacts(ctx context.Context, term string) ([]Contact, error)
	GetContactByExternalID(ctx context.Context, externalID string) (*Contact, error)
	ListCalls(ctx context.Context, since time.Time, pageSize int) ([]Call, error)
	ListConversations(ctx context.Context, since time.Time, pageSize int) ([]Conversation, error)
	ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error)
	Ping(ctx context.Context) error
	Close()
}

// Compile-time check that Client satisfies Interface.
var _ Interface = (*Client)(nil)
