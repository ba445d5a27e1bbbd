package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	fserrors "github.com/hpungsan/fishscroll/internal/errors"
)

// Config holds application configuration.
type Config struct {
	// MaxDimension bounds the longer edge of normalized captures, in pixels
	MaxDimension int `json:"max_dimension" env:"FISHSCROLL_MAX_DIMENSION"`

	// Quality is the JPEG quality of normalized captures, in (0,1]
	Quality float64 `json:"quality" env:"FISHSCROLL_QUALITY"`

	// HistoryLimit caps the number of stored history entries
	HistoryLimit int `json:"history_limit" env:"FISHSCROLL_HISTORY_LIMIT"`

	// HistoryMaxBytes caps the serialized history size.
	// 0 means unlimited. Saves over the cap are reported as persistence warnings.
	HistoryMaxBytes int64 `json:"history_max_bytes,omitempty" env:"FISHSCROLL_HISTORY_MAX_BYTES"`

	// BackendURL is the origin of the analysis backend used by identify
	BackendURL string `json:"backend_url" env:"FISHSCROLL_BACKEND_URL"`

	// RequestTimeoutSeconds bounds one analysis request. 0 means no client timeout.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty" env:"FISHSCROLL_REQUEST_TIMEOUT_SECONDS"`

	// CameraFrontURL and CameraRearURL are still-image snapshot endpoints for live capture
	CameraFrontURL string `json:"camera_front_url,omitempty" env:"FISHSCROLL_CAMERA_FRONT_URL"`
	CameraRearURL  string `json:"camera_rear_url,omitempty" env:"FISHSCROLL_CAMERA_REAR_URL"`

	// Provider selects the model used by the analysis backend: "openai" or "gemini"
	Provider    string `json:"provider" env:"FISHSCROLL_PROVIDER"`
	OpenAIModel string `json:"openai_model" env:"FISHSCROLL_OPENAI_MODEL"`
	GeminiModel string `json:"gemini_model" env:"FISHSCROLL_GEMINI_MODEL"`

	// OpenAIBaseURL overrides the OpenAI API endpoint (proxies, compatible servers)
	OpenAIBaseURL string `json:"openai_base_url,omitempty" env:"FISHSCROLL_OPENAI_BASE_URL"`

	// ListenAddr is the bind address for serve
	ListenAddr string `json:"listen_addr" env:"FISHSCROLL_LISTEN_ADDR"`

	// Archive settings. Archiving is enabled when endpoint and bucket are both set.
	ArchiveEndpoint string `json:"archive_endpoint,omitempty" env:"FISHSCROLL_ARCHIVE_ENDPOINT"`
	ArchiveBucket   string `json:"archive_bucket,omitempty" env:"FISHSCROLL_ARCHIVE_BUCKET"`
	ArchiveRegion   string `json:"archive_region,omitempty" env:"FISHSCROLL_ARCHIVE_REGION"`
	ArchiveUseSSL   bool   `json:"archive_use_ssl,omitempty" env:"FISHSCROLL_ARCHIVE_USE_SSL"`

	// Secrets are read from the environment only, never from config.json.
	OpenAIAPIKey     string `json:"-" env:"OPENAI_API_KEY"`
	GeminiAPIKey     string `json:"-" env:"GEMINI_API_KEY"`
	ArchiveAccessKey string `json:"-" env:"FISHSCROLL_ARCHIVE_ACCESS_KEY"`
	ArchiveSecretKey string `json:"-" env:"FISHSCROLL_ARCHIVE_SECRET_KEY"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" env:"FISHSCROLL_DB_MAX_OPEN_CONNS"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" env:"FISHSCROLL_DB_MAX_IDLE_CONNS"`

	// AllowedPaths lists extra directories history export/import may use,
	// in addition to ~/.fishscroll/exports. Relative entries are ignored.
	AllowedPaths []string `json:"allowed_paths,omitempty" env:"FISHSCROLL_ALLOWED_PATHS" envSeparator:","`

	// AllowUnsafePaths lifts the directory restriction on export/import paths.
	// Symlinks are still rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" env:"FISHSCROLL_ALLOW_UNSAFE_PATHS"`

	// BaseDir is the data directory the config was loaded from. Set by Load.
	BaseDir string `json:"-"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// All tools are enabled by default. Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" env:"FISHSCROLL_DISABLED_TOOLS" envSeparator:","`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxDimension: 1024,
		Quality:      0.85,
		HistoryLimit: 50,
		BackendURL:   "http://127.0.0.1:8787",
		Provider:     "openai",
		OpenAIModel:  "gpt-4o-mini",
		GeminiModel:  "gemini-2.5-flash",
		ListenAddr:   "127.0.0.1:8787",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.fishscroll.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = baseDir
	return cfg, nil
}

// ExportsDir is the default directory for history exports.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.BaseDir, "exports")
}

// LoadWithEnv loads baseDir/config.json, applies the environment overlay and
// validates the result.
func LoadWithEnv(baseDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}
	cfg, err = ApplyEnv(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on cfg. Set variables win; unset
// variables leave cfg's values in place.
func ApplyEnv(cfg *Config) (*Config, error) {
	overlay := &Config{}
	if err := env.Parse(overlay); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return Merge(cfg, overlay), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MaxDimension = pick(overlay.MaxDimension, base.MaxDimension)
	result.Quality = pick(overlay.Quality, base.Quality)
	result.HistoryLimit = pick(overlay.HistoryLimit, base.HistoryLimit)
	result.HistoryMaxBytes = pick(overlay.HistoryMaxBytes, base.HistoryMaxBytes)
	result.BackendURL = pick(overlay.BackendURL, base.BackendURL)
	result.RequestTimeoutSeconds = pick(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.CameraFrontURL = pick(overlay.CameraFrontURL, base.CameraFrontURL)
	result.CameraRearURL = pick(overlay.CameraRearURL, base.CameraRearURL)
	result.Provider = pick(overlay.Provider, base.Provider)
	result.OpenAIModel = pick(overlay.OpenAIModel, base.OpenAIModel)
	result.GeminiModel = pick(overlay.GeminiModel, base.GeminiModel)
	result.OpenAIBaseURL = pick(overlay.OpenAIBaseURL, base.OpenAIBaseURL)
	result.ListenAddr = pick(overlay.ListenAddr, base.ListenAddr)
	result.ArchiveEndpoint = pick(overlay.ArchiveEndpoint, base.ArchiveEndpoint)
	result.ArchiveBucket = pick(overlay.ArchiveBucket, base.ArchiveBucket)
	result.ArchiveRegion = pick(overlay.ArchiveRegion, base.ArchiveRegion)
	result.OpenAIAPIKey = pick(overlay.OpenAIAPIKey, base.OpenAIAPIKey)
	result.GeminiAPIKey = pick(overlay.GeminiAPIKey, base.GeminiAPIKey)
	result.ArchiveAccessKey = pick(overlay.ArchiveAccessKey, base.ArchiveAccessKey)
	result.ArchiveSecretKey = pick(overlay.ArchiveSecretKey, base.ArchiveSecretKey)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.BaseDir = pick(overlay.BaseDir, base.BaseDir)

	// Booleans: overlay wins if true, else base
	result.ArchiveUseSSL = base.ArchiveUseSSL || overlay.ArchiveUseSSL
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// Validate rejects out-of-range values with INVALID_REQUEST.
func (c *Config) Validate() error {
	switch {
	case c.MaxDimension <= 0:
		return fserrors.NewInvalidRequest(fmt.Sprintf("max_dimension must be positive, got %d", c.MaxDimension))
	case c.Quality <= 0 || c.Quality > 1:
		return fserrors.NewInvalidRequest(fmt.Sprintf("quality must be in (0,1], got %v", c.Quality))
	case c.HistoryLimit <= 0:
		return fserrors.NewInvalidRequest(fmt.Sprintf("history_limit must be positive, got %d", c.HistoryLimit))
	case c.HistoryMaxBytes < 0:
		return fserrors.NewInvalidRequest("history_max_bytes must not be negative")
	case c.RequestTimeoutSeconds < 0:
		return fserrors.NewInvalidRequest("request_timeout_seconds must not be negative")
	case c.ListenAddr == "":
		return fserrors.NewInvalidRequest("listen_addr must not be empty")
	}

	switch strings.ToLower(c.Provider) {
	case "openai", "gemini":
	default:
		return fserrors.NewInvalidRequest(fmt.Sprintf("provider must be openai or gemini, got %q", c.Provider))
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fserrors.NewInvalidRequest(fmt.Sprintf("backend_url must be an http(s) URL, got %q", c.BackendURL))
	}
	return nil
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
