package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ferry/internal/dataset"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Auth      AuthConfig        `yaml:"auth"`
	Watch     WatchConfig       `yaml:"watch"`
	Dataset   DatasetConfig     `yaml:"dataset"`
	Move      MoveConfig        `yaml:"move"`
	Heartbeat HeartbeatConfig   `yaml:"heartbeat"`
	Lock      LockConfig        `yaml:"lock"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Dataset.Validate(); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	if err := c.Move.Validate(); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return validation.ValidateStruct(&c.Heartbeat,
		validation.Field(&c.Heartbeat.Path, validation.Required),
	)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the status API configuration.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration for the status API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WatchConfig describes the watched directory and tick timings.
type WatchConfig struct {
	Path string `yaml:"path"`
	// ErrorFolder is the name of the error subfolder inside Path.
	ErrorFolder    string        `yaml:"error_folder"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	CreateGrace    time.Duration `yaml:"create_grace"`
	ExcludeMarkers []string      `yaml:"exclude_markers"`
}

// Dir returns the cleaned watched path, without trailing separators.
func (c *WatchConfig) Dir() string {
	return filepath.Clean(strings.TrimSpace(c.Path))
}

// ErrorDir returns the full path of the error subfolder.
func (c *WatchConfig) ErrorDir() string {
	return filepath.Join(c.Dir(), c.ErrorFolder)
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ErrorFolder, validation.Required),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SettleDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.CreateGrace, validation.Min(time.Duration(0))),
	)
}

// DatasetConfig locates the reference workbook.
type DatasetConfig struct {
	Path          string          `yaml:"path"`
	Sheet         string          `yaml:"sheet"`
	Columns       dataset.Columns `yaml:"columns"`
	TempDir       string          `yaml:"temp_dir"`
	LookupTimeout time.Duration   `yaml:"lookup_timeout"`
}

// Validate validates the dataset configuration.
func (c *DatasetConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.LookupTimeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(c.Path), ".csv") && c.Sheet == "" {
		return fmt.Errorf("sheet: cannot be blank for a workbook")
	}
	return validation.ValidateStruct(&c.Columns,
		validation.Field(&c.Columns.Match, validation.Required),
		validation.Field(&c.Columns.OutputFolder, validation.Required),
	)
}

// Options converts the configuration into dataset lookup options.
func (c *DatasetConfig) Options() dataset.Options {
	return dataset.Options{
		Path:    c.Path,
		Sheet:   c.Sheet,
		Columns: c.Columns,
		TempDir: c.TempDir,
	}
}

// MoveConfig holds the copy verification and delete confirmation timings.
type MoveConfig struct {
	VerifyDelay   time.Duration `yaml:"verify_delay"`
	DeleteRetries int           `yaml:"delete_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Validate validates the move configuration.
func (c *MoveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.VerifyDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.DeleteRetries, validation.Required, validation.Min(1)),
		validation.Field(&c.RetryInterval, validation.Min(time.Duration(0))),
	)
}

// HeartbeatConfig locates the heartbeat file.
type HeartbeatConfig struct {
	Path string `yaml:"path"`
}

// LockConfig locates the single-instance lock file. Empty disables locking.
type LockConfig struct {
	Path string `yaml:"path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Enabled: true,
				Port:    8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			ErrorFolder:    "Error",
			PollInterval:   30 * time.Second,
			SettleDelay:    5 * time.Second,
			CreateGrace:    3 * time.Second,
			ExcludeMarkers: []string{"ExceptionReport", "PTR001A"},
		},
		Dataset: DatasetConfig{
			Sheet:         "Sheet1",
			Columns:       dataset.DefaultColumns(),
			LookupTimeout: 45 * time.Second,
		},
		Move: MoveConfig{
			VerifyDelay:   3 * time.Second,
			DeleteRetries: 3,
			RetryInterval: 3 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Path: "./Heartbeat_MoveFiles.txt",
		},
		Lock: LockConfig{
			Path: "./ferry.lock",
		},
	}
}
