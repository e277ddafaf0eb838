// validate.go - settings validation
package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caselink/contactsync/internal/errors"
)

// ValidateSettings checks the loaded settings for values the services cannot
// run with. Validation failures are configuration errors and abort startup.
func ValidateSettings(settings *Settings) error {
	var problems []string

	if settings.Provider.APIKey == "" {
		problems = append(problems, "provider.apikey is required (or set CONTACTSYNC_API_KEY)")
	}
	if u, err := url.Parse(settings.Provider.BaseURL); err != nil ||
		(u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("provider.baseurl %q is not a valid http(s) URL", settings.Provider.BaseURL))
	}
	if settings.Provider.RequestsPerMinute <= 0 {
		problems = append(problems, "provider.requestsperminute must be positive")
	}
	if settings.Provider.RequestsPerHour <= 0 {
		problems = append(problems, "provider.requestsperhour must be positive")
	}
	if settings.Provider.RequestsPerHour < settings.Provider.RequestsPerMinute {
		problems = append(problems, "provider.requestsperhour must not be smaller than provider.requestsperminute")
	}
	if settings.Provider.MaxConcurrent <= 0 {
		problems = append(problems, "provider.maxconcurrent must be positive")
	}
	if settings.Provider.RetryAttempts < 0 {
		problems = append(problems, "provider.retryattempts must not be negative")
	}
	if settings.Provider.RetryDelay <= 0 {
		problems = append(problems, "provider.retrydelay must be positive")
	}

	if settings.Sync.BatchSize <= 0 {
		problems = append(problems, "sync.batchsize must be positive")
	}
	if settings.Sync.NameSimilarityThreshold < 0 || settings.Sync.NameSimilarityThreshold > 1 {
		problems = append(problems, "sync.namesimilaritythreshold must be between 0 and 1")
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		problems = append(problems, "either output.sqlite or output.mysql must be enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		problems = append(problems, "output.sqlite.path is required when sqlite is enabled")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			problems = append(problems, "output.mysql.host and output.mysql.database are required when mysql is enabled")
		}
	}

	if settings.Notify.MQTT.Enabled {
		if !strings.Contains(settings.Notify.MQTT.Broker, "://") {
			problems = append(problems, fmt.Sprintf("notify.mqtt.broker %q must include a scheme, e.g. tcp://host:1883", settings.Notify.MQTT.Broker))
		}
		if settings.Notify.MQTT.Topic == "" {
			problems = append(problems, "notify.mqtt.topic is required when mqtt is enabled")
		}
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.Newf("invalid configuration: %s", strings.Join(problems, "; ")).
		Category(errors.CategoryConfiguration).
		Component("configuration").
		Context("problem_count", len(problems)).
		Build()
}
