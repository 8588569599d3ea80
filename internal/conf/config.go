// config.go: settings for the medtel-go warehouse pipeline. It defines the
// settings struct and the functions to load, access and save the settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"github.com/tphakala/medtel-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains the settings for a log output.
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // path to log file
	Rotation    RotationType // rotation type: daily, weekly or size
	MaxSize     int64        // max size in bytes for size rotation
	RotationDay string       // day of the week for weekly rotation
}

// MainSettings contains the main application settings.
type MainSettings struct {
	Name string    // name of the node
	Log  LogConfig // main log settings
}

// SQLiteSettings contains settings for the SQLite warehouse store.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite output
	Path    string // path to the SQLite database file
}

// MySQLSettings contains settings for the MySQL warehouse store.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL output
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings contains the warehouse store settings. Exactly one store
// must be enabled.
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite output settings
	MySQL  MySQLSettings  // MySQL output settings
}

// LakeSettings points at the raw data lake produced by the acquisition
// collaborator.
type LakeSettings struct {
	BasePath string // base path of the data lake ("data" by default)
}

// RetrySettings controls the orchestrator retry policy. Retries apply only
// to the acquire step, where transient failures are expected.
type RetrySettings struct {
	Enabled     bool    // true to retry failed acquisition
	MaxRetries  int     // maximum number of retries
	RetryDelay  int     // initial delay in seconds between retries
	BackoffMult float64 // multiplier applied to the delay after each retry
}

// AcquireSettings controls the external acquisition step.
type AcquireSettings struct {
	Enabled bool          // false to skip acquisition and reuse lake contents
	Retry   RetrySettings // retry policy for acquisition only
}

// StagingSettings bounds the valid event-date window for staged records.
type StagingSettings struct {
	MinDate        string // earliest valid message date, inclusive (YYYY-MM-DD)
	FutureSlackHrs int    // hours past now a message date may be before it is nulled
}

// CalendarSettings bounds the calendar dimension range.
type CalendarSettings struct {
	StartDate   string // first calendar day (YYYY-MM-DD)
	HorizonDays int    // days past today to pre-populate
}

// RuleSetting is one priority-ordered classification rule.
type RuleSetting struct {
	Label    string   // label assigned on match
	Keywords []string // case-insensitive substrings, any match wins
}

// ClassifySettings holds the data-driven classification cascades. Empty
// slices fall back to the built-in defaults.
type ClassifySettings struct {
	ChannelRules  []RuleSetting // channel type cascade, first match wins
	ProductRules  []RuleSetting // product type cascade, first match wins
	PriceKeywords []string      // price mention keywords
}

// QualitySettings controls the data-quality assertion battery.
type QualitySettings struct {
	MaxSampleIDs int // cap on violating row ids reported per check
}

// PipelineSettings contains the orchestrator and transformation settings.
type PipelineSettings struct {
	Lake        LakeSettings     // raw data lake location
	Acquire     AcquireSettings  // acquisition step settings
	Staging     StagingSettings  // staging cleanse settings
	Calendar    CalendarSettings // calendar dimension settings
	Classify    ClassifySettings // classification cascades
	Quality     QualitySettings  // data-quality settings
	MaxParallel int              // max concurrent steps within a DAG layer
}

// TelemetrySettings contains settings for the Prometheus telemetry endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // listen address and port of telemetry endpoint
}

// Settings is the root configuration object.
type Settings struct {
	Debug bool // true to enable debug mode

	Main      MainSettings      // main application settings
	Output    OutputSettings    // warehouse store settings
	Pipeline  PipelineSettings  // pipeline settings
	Telemetry TelemetrySettings // telemetry settings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the
// settings instance.
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

// initViper initializes viper with default values and reads the configuration file.
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

	// function defined in defaults.go
	setDefaultConfig()

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

// Setting returns the current settings instance, loading it if necessary.
func Setting() *Settings {
	settingsMutex.RLock()
	instance := settingsInstance
	settingsMutex.RUnlock()
	if instance == nil {
		if _, err := Load(); err != nil {
			log.Fatalf("Error loading settings: %v", err)
		}
		settingsMutex.RLock()
		instance = settingsInstance
		settingsMutex.RUnlock()
	}
	return instance
}

// GetSettings returns the current settings instance without loading.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the current settings instance. Intended for tests.
func SetSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}
