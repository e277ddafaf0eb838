package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselink/contactsync/internal/errors"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Provider.APIKey = "test-key"
	s.Provider.BaseURL = "https://api.contactprovider.com/v1"
	s.Provider.RequestsPerMinute = 60
	s.Provider.RequestsPerHour = 1000
	s.Provider.MaxConcurrent = 5
	s.Provider.RetryAttempts = 3
	s.Provider.RetryDelay = 1000
	s.Sync.BatchSize = 50
	s.Sync.NameSimilarityThreshold = 0.85
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "contactsync.db"
	return s
}

func TestValidateSettings_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettings_Problems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "missing api key",
			mutate:  func(s *Settings) { s.Provider.APIKey = "" },
			wantMsg: "provider.apikey",
		},
		{
			name:    "bad base url",
			mutate:  func(s *Settings) { s.Provider.BaseURL = "not a url" },
			wantMsg: "provider.baseurl",
		},
		{
			name:    "hourly quota below per-minute quota",
			mutate:  func(s *Settings) { s.Provider.RequestsPerHour = 10 },
			wantMsg: "requestsperhour",
		},
		{
			name:    "zero concurrency",
			mutate:  func(s *Settings) { s.Provider.MaxConcurrent = 0 },
			wantMsg: "maxconcurrent",
		},
		{
			name:    "similarity threshold out of range",
			mutate:  func(s *Settings) { s.Sync.NameSimilarityThreshold = 1.5 },
			wantMsg: "namesimilaritythreshold",
		},
		{
			name: "no store enabled",
			mutate: func(s *Settings) {
				s.Output.SQLite.Enabled = false
				s.Output.MySQL.Enabled = false
			},
			wantMsg: "output.sqlite or output.mysql",
		},
		{
			name: "mqtt broker without scheme",
			mutate: func(s *Settings) {
				s.Notify.MQTT.Enabled = true
				s.Notify.MQTT.Broker = "localhost:1883"
				s.Notify.MQTT.Topic = "contactsync/events"
			},
			wantMsg: "notify.mqtt.broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}
