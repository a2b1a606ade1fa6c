package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ifgstack/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and template directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	TemplateDir string `toml:"template_dir"`
}

// Catalog selects the dataset catalog consulted by the idempotency gate.
type Catalog struct {
	Backend        string `toml:"backend"`
	URL            string `toml:"url"`
	Index          string `toml:"index"`
	SQLitePath     string `toml:"sqlite_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Filter configures the external interferogram filter collaborator.
type Filter struct {
	Command        []string `toml:"command"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Stages configures the four external processing stages.
type Stages struct {
	Python              string `toml:"python"`
	PrepStackCommand    string `toml:"prep_stack_command"`
	ProcessStackCommand string `toml:"process_stack_command"`
	// TimeoutSeconds bounds each stage; 0 means no limit.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Bundle controls product naming and assembly.
type Bundle struct {
	IDPrefix         string `toml:"id_prefix"`
	ThumbnailSize    int    `toml:"thumbnail_size"`
	CompressionLevel int    `toml:"compression_level"`
	TimeAxisCommand  string `toml:"timeaxis_command"`
	NetworkPlot      bool   `toml:"network_plot"`
}

// Publish configures optional upload of finished bundles to S3-compatible storage.
type Publish struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Metrics configures the optional prometheus textfile output.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for ifgstack.
//
// Configuration sections by subsystem:
//   - Paths: state directory (ledger, locks) and template overrides
//   - Catalog: idempotency gate backend
//   - Filter: external filter command
//   - Stages: processing stage executables and timeout
//   - Bundle: identity prefix and assembly knobs
//   - Publish: S3-compatible upload of finished bundles
//   - Metrics: prometheus textfile output
//   - Logging: log format, level, and directory
type Config struct {
	Paths   Paths   `toml:"paths"`
	Catalog Catalog `toml:"catalog"`
	Filter  Filter  `toml:"filter"`
	Stages  Stages  `toml:"stages"`
	Bundle  Bundle  `toml:"bundle"`
	Publish Publish `toml:"publish"`
	Metrics Metrics `toml:"metrics"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfig, "config", "open", "Failed to open config", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfig, "config", "parse", "Failed to parse "+resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfig, "config", "normalize", "Invalid config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfig, "config", "validate", "Invalid config", err)
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ifgstack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory and, when configured, the log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the sqlite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockDir returns the directory holding per-working-directory run locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// StageTimeout returns the per-stage timeout, zero when unbounded.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Stages.TimeoutSeconds) * time.Second
}

// CatalogTimeout returns the catalog request timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// FilterTimeout returns the filter collaborator timeout, zero when unbounded.
func (c *Config) FilterTimeout() time.Duration {
	return time.Duration(c.Filter.TimeoutSeconds) * time.Second
}

// RequiredBinaries lists the executables the pipeline invokes, in stage order.
func (c *Config) RequiredBinaries() []string {
	bins := []string{c.Stages.Python, c.Stages.PrepStackCommand, c.Stages.ProcessStackCommand, c.Bundle.TimeAxisCommand}
	if len(c.Filter.Command) > 0 {
		bins = append([]string{c.Filter.Command[0]}, bins...)
	}
	return bins
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
