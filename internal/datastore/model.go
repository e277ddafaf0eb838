package datastore

import (
	"time"
)

// Client is a practice-side client directory entry. The sync engine reads
// clients and writes back only the remote contact attachment; everything else
// is owned by the practice management layer.
type Client struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time `gorm:"index"`

	Name        string `gorm:"uniqueIndex;size:255;not null"`
	PhoneNumber string `gorm:"index;size:32"`
	Email       string `gorm:"size:255"`

	// Case metadata carried into the remote contact's custom fields.
	ClientType   string `gorm:"size:64"`
	DateOfBirth  string `gorm:"size:32"`
	County       string `gorm:"size:128"`
	IntakeDate   string `gorm:"size:32"`
	CaseType     string `gorm:"size:128"`
	Arrested     bool
	Incarcerated bool

	// Up to two alternative contact persons.
	AltContact1Name         string `gorm:"size:255"`
	AltContact1Phone        string `gorm:"size:32"`
	AltContact1Relationship string `gorm:"size:64"`
	AltContact2Name         string `gorm:"size:255"`
	AltContact2Phone        string `gorm:"size:32"`
	AltContact2Relationship string `gorm:"size:64"`

	// RemoteContactID is attached when the communications importer first
	// resolves this client to a remote contact.
	RemoteContactID string `gorm:"index;size:64"`
	// CreatedByImport marks placeholder clients created from inbound
	// communications rather than by practice staff.
	CreatedByImport bool
}

// Communication is one imported call or messaging conversation, keyed by the
// provider's event ID. Records are created or updated, never deleted here.
type Communication struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	RemoteID        string `gorm:"uniqueIndex;size:64;not null"`
	ClientID        uint   `gorm:"index"`
	Type            string `gorm:"size:16;index"` // call or conversation
	Direction       string `gorm:"size:16"`
	PhoneNumber     string `gorm:"index;size:32"`
	DurationSeconds int
	Body            string    `gorm:"type:text"`
	OccurredAt      time.Time `gorm:"index"`
}

// Communication type values.
const (
	CommunicationTypeCall         = "call"
	CommunicationTypeConversation = "conversation"
)
