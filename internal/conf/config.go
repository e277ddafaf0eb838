// config.go: This file contains the configuration for contactsync. It defines the
// settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains process-wide settings.
type MainSettings struct {
	Name string // node name, included in notification events
	Log  LogSettings
}

// LogSettings contains settings for service file logging.
type LogSettings struct {
	Enabled bool   // true to enable per-service file logs
	Path    string // directory for service log files
}

// CustomFieldKeys maps outbound contact custom fields to the remote schema's
// field keys. Empty keys omit that field from outbound payloads, so the
// mapping survives remote schema differences across deployments.
type CustomFieldKeys struct {
	ClientType               string `yaml:"clienttype"`
	DateOfBirth              string `yaml:"dateofbirth"`
	County                   string `yaml:"county"`
	IntakeDate               string `yaml:"intakedate"`
	CaseType                 string `yaml:"casetype"`
	Arrested                 string `yaml:"arrested"`
	Incarcerated             string `yaml:"incarcerated"`
	PrimaryClientName        string `yaml:"primaryclientname"`
	Relationship             string `yaml:"relationship"`
	ContactPersonName        string `yaml:"contactpersonname"`
	AlternativeContactNumber string `yaml:"alternativecontactnumber"`
}

// ProviderSettings contains settings for the contact provider API client.
type ProviderSettings struct {
	APIKey            string          // bearer token for the provider API
	BaseURL           string          // provider API base URL
	RequestsPerMinute int             // local per-minute quota window
	RequestsPerHour   int             // local per-hour quota window
	MaxConcurrent     int64           // concurrency gate size
	Timeout           int             // request timeout in seconds
	RetryAttempts     int             // retry ceiling for 429/5xx responses
	RetryDelay        int             // base retry delay in milliseconds
	Debug             bool            // true to enable request/response debug logging
	CustomFields      CustomFieldKeys // remote custom field key overrides
}

// SyncSettings contains settings for the sync orchestrator.
type SyncSettings struct {
	BatchSize               int     // clients per batch
	ContinueOnError         bool    // isolate per-client failures
	NameSimilarityThreshold float64 // minimum similarity for a name-based duplicate match
	CacheTTL                int     // dedup snapshot staleness in minutes, 0 keeps it for the run
}

// ImportSettings contains settings for the communications importer.
type ImportSettings struct {
	Enabled       bool // true to enable call/conversation ingestion
	LookbackHours int  // default window when no --since is given
	PageSize      int  // events per page when listing calls/conversations
}

// SQLiteSettings contains settings for the SQLite store.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL store.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings selects and configures the relational store.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// MQTTSettings contains settings for the MQTT notification sink.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	Username string
	Password string
}

// NotifySettings contains settings for sync event notification sinks.
type NotifySettings struct {
	MQTT MQTTSettings
}

// HTTPSettings contains settings for the status/metrics server.
type HTTPSettings struct {
	Enabled bool
	Host    string
	Port    string
}

// Settings is the root configuration for contactsync.
type Settings struct {
	Debug bool

	Main     MainSettings
	Provider ProviderSettings
	Sync     SyncSettings
	Import   ImportSettings
	Output   OutputSettings
	Notify   NotifySettings
	HTTP     HTTPSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads the configuration, applies environment overrides and validates
// the result. The returned instance is also stored as the process settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Bind environment variables, function defined in env.go
	if err := bindEnvVars(); err != nil {
		return err
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: the working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	if userConfig, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userConfig, "contactsync"))
	}

	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// FindConfigFile locates the config file currently in use.
func FindConfigFile() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		candidate := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("config file not found in %v", configPaths)
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first to keep the write atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
