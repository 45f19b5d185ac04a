package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".config/kartoza-overlay-renderer"
	// DefaultVideosDir is the default output directory for rendered videos
	DefaultVideosDir = "Videos/CTA"
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "config.json"
	// DefaultFilenamePrefix is prepended to batch output names
	DefaultFilenamePrefix = "cta_"
	// DefaultOutputExtension is the container used for outputs
	DefaultOutputExtension = "mp4"
	// DefaultProbeTimeoutSeconds bounds the hardware encoder probe
	DefaultProbeTimeoutSeconds = 10
)

// Environment variables that override the config file
const (
	EnvOutputDir = "KOR_OUTPUT_DIR"
	EnvFFmpeg    = "KOR_FFMPEG"
	EnvHWEncoder = "KOR_HW_ENCODER"
	EnvWorkers   = "KOR_WORKERS"
)

// Config holds the application configuration
type Config struct {
	OutputDir           string `json:"output_dir"`
	FilenamePrefix      string `json:"filename_prefix"`
	OutputExtension     string `json:"output_extension"`
	UseHardwareEncoder  bool   `json:"use_hardware_encoder"`
	FFmpegBinary        string `json:"ffmpeg_binary"`
	ProbeTimeoutSeconds int    `json:"probe_timeout_seconds"`
	SynthesisWorkers    int    `json:"synthesis_workers"` // 0 uses one per CPU
	DefaultTolerance    int    `json:"default_tolerance"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		OutputDir:           GetDefaultVideosDir(),
		FilenamePrefix:      DefaultFilenamePrefix,
		OutputExtension:     DefaultOutputExtension,
		UseHardwareEncoder:  true,
		FFmpegBinary:        "ffmpeg",
		ProbeTimeoutSeconds: DefaultProbeTimeoutSeconds,
		DefaultTolerance:    models.DefaultTolerance,
	}
}

var (
	dirMu       sync.RWMutex
	dirOverride string
)

// SetConfigDir overrides the configuration directory (empty restores the default)
func SetConfigDir(dir string) {
	dirMu.Lock()
	defer dirMu.Unlock()
	dirOverride = dir
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	dirMu.RLock()
	override := dirOverride
	dirMu.RUnlock()
	if override != "" {
		return override
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigDir
	}
	return filepath.Join(home, DefaultConfigDir)
}

// GetDefaultVideosDir returns the default output directory path
func GetDefaultVideosDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultVideosDir
	}
	return filepath.Join(home, DefaultVideosDir)
}

// EnsureDirectories creates the necessary directories
func EnsureDirectories() error {
	return os.MkdirAll(GetConfigDir(), 0755)
}

// LoadEnvFile reads a .env file into the process environment.
// A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Load loads the configuration from disk and applies environment overrides
func Load() (*Config, error) {
	configPath := filepath.Join(GetConfigDir(), ConfigFileName)

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.fillDefaults()
	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.OutputDir = v
	}
	if v, ok := lookup(EnvFFmpeg); ok && v != "" {
		c.FFmpegBinary = v
	}
	if v, ok := lookup(EnvHWEncoder); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.UseHardwareEncoder = b
		}
	}
	if v, ok := lookup(EnvWorkers); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			c.SynthesisWorkers = n
		}
	}
}

func (c *Config) fillDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = GetDefaultVideosDir()
	}
	if c.OutputExtension == "" {
		c.OutputExtension = DefaultOutputExtension
	}
	if c.FFmpegBinary == "" {
		c.FFmpegBinary = "ffmpeg"
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = DefaultProbeTimeoutSeconds
	}
	if c.SynthesisWorkers < 0 {
		c.SynthesisWorkers = 0
	}
}

// Save saves the configuration to disk
func Save(cfg *Config) error {
	if err := EnsureDirectories(); err != nil {
		return err
	}

	configPath := filepath.Join(GetConfigDir(), ConfigFileName)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
