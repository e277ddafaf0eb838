package provider

import (
	"fmt"
	"time"

	"github.com/caselink/contactsync/internal/conf"
)

// Config holds settings for the provider API client.
type Config struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	RequestsPerHour   int
	MaxConcurrent     int64
	Timeout           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	Debug             bool
}

// DefaultConfig returns client defaults used for any zero Config values.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.contactprovider.com/v1",
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		MaxConcurrent:     5,
		Timeout:           30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        time.Second,
	}
}

// ConfigFromSettings builds a client Config from the loaded settings.
func ConfigFromSettings(s *conf.ProviderSettings) Config {
	return Config{
		APIKey:            s.APIKey,
		BaseURL:           s.BaseURL,
		RequestsPerMinute: s.RequestsPerMinute,
		RequestsPerHour:   s.RequestsPerHour,
		MaxConcurrent:     s.MaxConcurrent,
		Timeout:           time.Duration(s.Timeout) * time.Second,
		RetryAttempts:     s.RetryAttempts,
		RetryDelay:        time.Duration(s.RetryDelay) * time.Millisecond,
		Debug:             s.Debug,
	}
}

// Contact is a contact record as held by the provider.
type Contact struct {
	ID           string            `json:"id"`
	ExternalID   string            `json:"externalId,omitempty"`
	Name         string            `json:"name"`
	PhoneNumbers []string          `json:"phoneNumbers"`
	Email        string            `json:"email,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	CreatedAt    time.Time         `json:"createdAt,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt,omitempty"`
}

// ContactRequest is the outbound payload for contact create and update calls.
type ContactRequest struct {
	ExternalID   string            `json:"externalId,omitempty"`
	Name         string            `json:"name"`
	PhoneNumbers []string          `json:"phoneNumbers"`
	Email        string            `json:"email,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// contactListResponse is the token-paginated envelope for contact listings.
type contactListResponse struct {
	Data          []Contact `json:"data"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
	TotalItems    int       `json:"totalItems,omitempty"`
}

// Call is a call event as reported by the provider.
type Call struct {
	ID         string    `json:"id"`
	Direction  string    `json:"direction"` // "incoming" or "outgoing"
	Status     string    `json:"status"`    // "completed", "missed", "voicemail", ...
	From       string    `json:"from"`
	To         string    `json:"to"`
	Duration   int       `json:"duration"` // seconds
	ContactID  string    `json:"contactId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	AnsweredAt time.Time `json:"answeredAt,omitempty"`
}

// callListResponse is the page/limit envelope used by the calls endpoint
// generation of the API.
type callListResponse struct {
	Data       []Call `json:"data"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

// Conversation is a message thread as reported by the provider.
type Conversation struct {
	ID             string    `json:"id"`
	PhoneNumber    string    `json:"phoneNumber"`
	ContactID      string    `json:"contactId,omitempty"`
	LastMessage    string    `json:"lastMessage,omitempty"`
	MessageCount   int       `json:"messageCount"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

type conversationListResponse struct {
	Data       []Conversation `json:"data"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// PhoneNumber is a provider-side phone line available to the practice.
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type phoneNumberListResponse struct {
	Data []PhoneNumber `json:"data"`
}

// apiErrorBody is the provider's error response shape.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a structured provider API error carrying the HTTP status and
// the provider-reported code and message.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider API error (status %d, code %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider API error (status %d): %s", e.Status, e.Message)
}
