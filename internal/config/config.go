// Package config loads gstack settings from JSONC files and flag overrides
// and turns them into [guardstack.Options].
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// Error variables for configuration loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrUnknownAllocator   = errors.New("unknown allocator")
	ErrUnknownLogLevel    = errors.New("unknown log level")
	ErrFloorNegative      = errors.New("floor cannot be negative")
)

// Allocator names accepted by the "allocator" key.
const (
	AllocatorHeap    = "heap"
	AllocatorMmap    = "mmap"
	AllocatorGuarded = "guarded"
)

// FileName is the project config file name.
const FileName = ".gstack.json"

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Disable      []string `json:"disable,omitempty"`
	Checksum     string   `json:"checksum,omitempty"`
	Allocator    string   `json:"allocator,omitempty"`
	Floor        int      `json:"floor,omitempty"`
	LogFile      string   `json:"log_file,omitempty"`
	LogLevel     string   `json:"log_level,omitempty"`
	OnCorruption string   `json:"on_corruption,omitempty"`
	History      *bool    `json:"history,omitempty"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	history := true

	return Config{
		Disable:      []string{},
		Checksum:     guardstack.ChecksumFold.String(),
		Allocator:    AllocatorHeap,
		Floor:        guardstack.DefaultFloor,
		LogLevel:     zerolog.InfoLevel.String(),
		OnCorruption: guardstack.PolicyReport.String(),
		History:      &history,
	}
}

// HistoryEnabled reports whether REPL history should be persisted.
func (c Config) HistoryEnabled() bool {
	return c.History == nil || *c.History
}

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/gstack/config.json if set, otherwise
// ~/.config/gstack/config.json. Returns "" if neither is known.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "gstack", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "gstack", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string            // directory holding the project config
	ConfigPath string            // -c/--config flag value
	Overrides  Config            // values from command-line flags; zero fields are ignored
	Env        map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/gstack/config.json or ~/.config/gstack/config.json)
// 3. Project config file (.gstack.json in WorkDir, if it exists)
// 4. Explicit config file via ConfigPath (replaces 3, must exist)
// 5. Flag overrides.
func Load(input LoadInput) (Config, error) {
	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		globalCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, globalCfg)
			cfg.Sources.Global = path
		}
	}

	projectCfg, projectPath, err := loadProject(input.WorkDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, projectCfg)
	cfg.Sources.Project = projectPath

	cfg = merge(cfg, input.Overrides)

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadProject loads .gstack.json from workDir, or the explicit config file.
// Returns the config and its path if loaded.
func loadProject(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, FileName)

		cfg, loaded, err := loadFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	// Check existence first to provide a clear "not found" error
	_, statErr := os.Stat(path)
	if statErr != nil {
		return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	cfg, _, err := loadFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile loads a config file. If mustExist is false, missing files return
// a zero config and loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes a JSONC document. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	err = dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

// merge returns base with every set field of overlay applied.
// A non-nil empty Disable list clears the inherited one.
func merge(base, overlay Config) Config {
	if overlay.Disable != nil {
		base.Disable = overlay.Disable
	}

	if overlay.Checksum != "" {
		base.Checksum = overlay.Checksum
	}

	if overlay.Allocator != "" {
		base.Allocator = overlay.Allocator
	}

	if overlay.Floor != 0 {
		base.Floor = overlay.Floor
	}

	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.OnCorruption != "" {
		base.OnCorruption = overlay.OnCorruption
	}

	if overlay.History != nil {
		base.History = overlay.History
	}

	return base
}

// Validate checks every value can be converted.
func (c Config) Validate() error {
	_, err := c.StackOptions()
	if err != nil {
		return err
	}

	_, err = c.level()

	return err
}

// StackOptions converts the config into stack options. Logger and Observer
// are left for the caller to set.
func (c Config) StackOptions() (guardstack.Options, error) {
	if c.Floor < 0 {
		return guardstack.Options{}, fmt.Errorf("%w: %d", ErrFloorNegative, c.Floor)
	}

	disable, err := guardstack.ParseProtection(strings.Join(c.Disable, ","))
	if err != nil {
		return guardstack.Options{}, fmt.Errorf("disable: %w", err)
	}

	checksum, err := guardstack.ParseChecksum(c.Checksum)
	if err != nil {
		return guardstack.Options{}, fmt.Errorf("checksum: %w", err)
	}

	policy, err := guardstack.ParsePolicy(c.OnCorruption)
	if err != nil {
		return guardstack.Options{}, fmt.Errorf("on_corruption: %w", err)
	}

	alloc, err := NewAllocator(c.Allocator)
	if err != nil {
		return guardstack.Options{}, err
	}

	return guardstack.Options{
		Disable:      disable,
		Floor:        c.Floor,
		Checksum:     checksum,
		Allocator:    alloc,
		OnCorruption: policy,
	}, nil
}

// NewAllocator returns the allocator registered under name. The empty string
// selects the heap.
func NewAllocator(name string) (guardstack.Allocator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AllocatorHeap:
		return guardstack.HeapAllocator{}, nil
	case AllocatorMmap:
		return guardstack.MmapAllocator{}, nil
	case AllocatorGuarded:
		return guardstack.NewGuardedAllocator(), nil
	default:
		return nil, fmt.Errorf("%w: %q (want heap, mmap or guarded)", ErrUnknownAllocator, name)
	}
}

func (c Config) level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: %q", ErrUnknownLogLevel, c.LogLevel)
	}

	return lvl, nil
}

// OpenLogger opens the configured log file (relative paths resolve against
// workDir) and returns a logger writing to it. Without a log file the logger
// is nil. The returned closer is never nil.
func (c Config) OpenLogger(workDir string) (*zerolog.Logger, io.Closer, error) {
	if c.LogFile == "" {
		return nil, io.NopCloser(nil), nil
	}

	lvl, err := c.level()
	if err != nil {
		return nil, nil, err
	}

	path := c.LogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := zerolog.New(f).Level(lvl).With().Timestamp().Logger()

	return &logger, f, nil
}

// Format renders the config as indented JSON.
func Format(cfg Config) (string, error) {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(out), nil
}
