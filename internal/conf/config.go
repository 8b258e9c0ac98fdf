// Package conf loads and validates the application configuration.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// Source describes one directory tree of incoming photos.
type Source struct {
	Path      string `mapstructure:"path"`
	Recursive bool   `mapstructure:"recursive"`
	// Pattern is an optional regular expression with named capture groups
	// `date` and/or `location`, matched against the file path relative to
	// the source root. A match overrides the positional folder heuristic.
	Pattern string `mapstructure:"pattern"`
}

// LogConfig holds file logging settings.
type LogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"maxsize"`
	MaxBackups int    `mapstructure:"maxbackups"`
	MaxAgeDays int    `mapstructure:"maxage"`
}

// MainConfig holds application-wide settings.
type MainConfig struct {
	Name string    `mapstructure:"name"`
	Log  LogConfig `mapstructure:"log"`
}

// SQLiteConfig holds SQLite database settings.
type SQLiteConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OutputConfig holds archival output settings.
type OutputConfig struct {
	// Root is the directory all archived photos land under.
	Root string `mapstructure:"root"`
	// Template controls archival path layout, e.g.
	// "{year}/{location}/{date}_{species_cn}_{confidence}_{filename}".
	Template string       `mapstructure:"template"`
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
}

// ProcessingConfig holds detection and worker pool settings.
type ProcessingConfig struct {
	Workers             int     `mapstructure:"workers"`
	BatchSize           int     `mapstructure:"batchsize"`
	CropPadding         int     `mapstructure:"croppadding"`
	TargetSize          int     `mapstructure:"targetsize"`
	DetectionConfidence float64 `mapstructure:"detectionconfidence"`
	// BlurThreshold is the minimum Laplacian-variance sharpness score a file
	// must reach to be processed. Zero disables the quality gate.
	BlurThreshold float64 `mapstructure:"blurthreshold"`
	TempDir       string  `mapstructure:"tempdir"`
}

// RecognitionConfig holds classifier and candidate filtering settings.
type RecognitionConfig struct {
	// Mode selects candidate filtering: "china", "auto" or "global".
	Mode string `mapstructure:"mode"`
	TopK int    `mapstructure:"topk"`
	// AlternativesThreshold and LowConfidenceThreshold are percentages.
	AlternativesThreshold  float64 `mapstructure:"alternativesthreshold"`
	LowConfidenceThreshold float64 `mapstructure:"lowconfidencethreshold"`
	AllowlistPath          string  `mapstructure:"allowlistpath"`
	ForeignListPath        string  `mapstructure:"foreignlistpath"`
	ServiceURL             string  `mapstructure:"serviceurl"`
	Device                 string  `mapstructure:"device"`
}

// TaxonomyConfig holds taxonomy import settings.
type TaxonomyConfig struct {
	// IOCSpreadsheetPath points at the IOC world bird list spreadsheet used
	// to seed the taxonomy table when it is empty.
	IOCSpreadsheetPath string `mapstructure:"iocspreadsheetpath"`
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool `mapstructure:"debug"`

	Main        MainConfig        `mapstructure:"main"`
	Sources     []Source          `mapstructure:"sources"`
	Output      OutputConfig      `mapstructure:"output"`
	Processing  ProcessingConfig  `mapstructure:"processing"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Taxonomy    TaxonomyConfig    `mapstructure:"taxonomy"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from disk, applies defaults, and unmarshals
// it into a Settings struct.
func Load() (*Settings, error) {
	setDefaultConfig()

	if err := initViper(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("unmarshaling config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// Setting returns the loaded settings instance, or nil before Load().
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("feathertrace")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Missing config file is fine, defaults plus flags apply.
			return nil
		}
		return errors.New(fmt.Errorf("reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for
// config.yaml, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "feather-trace"))
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "feather-trace"))
	}

	return paths, nil
}
