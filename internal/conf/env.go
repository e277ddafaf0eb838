// env.go - Environment variable configuration and validation for contactsync
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		// Provider API configuration
		{"provider.apikey", "CONTACTSYNC_API_KEY", nil},
		{"provider.baseurl", "CONTACTSYNC_BASE_URL", validateEnvURL},
		{"provider.requestsperminute", "CONTACTSYNC_REQUESTS_PER_MINUTE", validateEnvPositiveInt},
		{"provider.requestsperhour", "CONTACTSYNC_REQUESTS_PER_HOUR", validateEnvPositiveInt},
		{"provider.maxconcurrent", "CONTACTSYNC_MAX_CONCURRENT", validateEnvPositiveInt},
		{"provider.retryattempts", "CONTACTSYNC_RETRY_ATTEMPTS", validateEnvPositiveInt},
		{"provider.retrydelay", "CONTACTSYNC_RETRY_DELAY_MS", validateEnvPositiveInt},
		{"provider.debug", "CONTACTSYNC_PROVIDER_DEBUG", validateEnvBool},

		// Sync configuration
		{"sync.batchsize", "CONTACTSYNC_BATCH_SIZE", validateEnvPositiveInt},
		{"sync.continueonerror", "CONTACTSYNC_CONTINUE_ON_ERROR", validateEnvBool},
		{"sync.namesimilaritythreshold", "CONTACTSYNC_NAME_SIMILARITY_THRESHOLD", validateEnvRatio},

		// Custom field key overrides, absent keys omit that custom field
		{"provider.customfields.clienttype", "CONTACTSYNC_FIELD_CLIENT_TYPE", nil},
		{"provider.customfields.dateofbirth", "CONTACTSYNC_FIELD_DOB", nil},
		{"provider.customfields.county", "CONTACTSYNC_FIELD_COUNTY", nil},
		{"provider.customfields.intakedate", "CONTACTSYNC_FIELD_INTAKE_DATE", nil},
		{"provider.customfields.casetype", "CONTACTSYNC_FIELD_CASE_TYPE", nil},
		{"provider.customfields.arrested", "CONTACTSYNC_FIELD_ARRESTED", nil},
		{"provider.customfields.incarcerated", "CONTACTSYNC_FIELD_INCARCERATED", nil},
		{"provider.customfields.primaryclientname", "CONTACTSYNC_FIELD_PRIMARY_CLIENT_NAME", nil},
		{"provider.customfields.relationship", "CONTACTSYNC_FIELD_RELATIONSHIP", nil},
		{"provider.customfields.contactpersonname", "CONTACTSYNC_FIELD_CONTACT_PERSON_NAME", nil},
		{"provider.customfields.alternativecontactnumber", "CONTACTSYNC_FIELD_ALT_CONTACT_NUMBER", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			return fmt.Errorf("error binding %s to %s: %w", binding.EnvVar, binding.ConfigKey, err)
		}

		if binding.Validate == nil {
			continue
		}
		value, set := os.LookupEnv(binding.EnvVar)
		if !set || value == "" {
			continue
		}
		if err := binding.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", binding.EnvVar, err)
		}
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", value)
	}
	if n <= 0 {
		return fmt.Errorf("expected a positive integer, got %d", n)
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("expected a boolean, got %q", value)
	}
	return nil
}

func validateEnvRatio(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", value)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("expected a value between 0 and 1, got %v", f)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("expected an http(s) URL, got %q", value)
	}
	return nil
}
