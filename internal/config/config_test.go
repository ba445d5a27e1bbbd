package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/fishscroll/internal/errors"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.MaxDimension != def.MaxDimension {
		t.Errorf("MaxDimension = %d, want %d", cfg.MaxDimension, def.MaxDimension)
	}
	if cfg.Quality != def.Quality {
		t.Errorf("Quality = %v, want %v", cfg.Quality, def.Quality)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
	}
	if cfg.BackendURL != "http://127.0.0.1:8787" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"max_dimension": 800, "quality": 0.7, "provider": "gemini", "camera_rear_url": "http://phone:8080/shot.jpg"}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxDimension != 800 {
		t.Errorf("MaxDimension = %d, want 800", cfg.MaxDimension)
	}
	if cfg.Quality != 0.7 {
		t.Errorf("Quality = %v, want 0.7", cfg.Quality)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.CameraRearURL != "http://phone:8080/shot.jpg" {
		t.Errorf("CameraRearURL = %q", cfg.CameraRearURL)
	}
	// Untouched keys keep defaults
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
	}
}

func TestLoad_IgnoresSecretsInFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"OpenAIAPIKey": "sk-file", "openai_api_key": "sk-file"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Errorf("OpenAIAPIKey = %q, want empty (env only)", cfg.OpenAIAPIKey)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["fish_history_clear", "fish_history_remove"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "fish_history_clear" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "fish_history_clear")
	}
	if cfg.DisabledTools[1] != "fish_history_remove" {
		t.Errorf("DisabledTools[1] = %q, want %q", cfg.DisabledTools[1], "fish_history_remove")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FISHSCROLL_MAX_DIMENSION", "640")
	t.Setenv("FISHSCROLL_BACKEND_URL", "https://fish.example.com")
	t.Setenv("FISHSCROLL_DISABLED_TOOLS", "fish_history_clear, fish_identify")
	t.Setenv("FISHSCROLL_ARCHIVE_USE_SSL", "true")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	base := DefaultConfig()
	base.DisabledTools = []string{"fish_history_clear"}

	cfg, err := ApplyEnv(base)
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.MaxDimension != 640 {
		t.Errorf("MaxDimension = %d, want 640", cfg.MaxDimension)
	}
	if cfg.BackendURL != "https://fish.example.com" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.OpenAIAPIKey != "sk-env" {
		t.Errorf("OpenAIAPIKey = %q, want sk-env", cfg.OpenAIAPIKey)
	}
	if !cfg.ArchiveUseSSL {
		t.Error("ArchiveUseSSL should be true")
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 merged entries", cfg.DisabledTools)
	}
	// Not set in env: keeps base
	if cfg.Quality != 0.85 {
		t.Errorf("Quality = %v, want 0.85", cfg.Quality)
	}
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	t.Setenv("FISHSCROLL_HISTORY_LIMIT", "lots")

	if _, err := ApplyEnv(DefaultConfig()); err == nil {
		t.Fatal("ApplyEnv() expected error for non-numeric value")
	}
}

func TestLoadWithEnv_Validates(t *testing.T) {
	t.Setenv("FISHSCROLL_QUALITY", "1.5")

	_, err := LoadWithEnv(t.TempDir())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero max dimension", func(c *Config) { c.MaxDimension = 0 }, false},
		{"quality above one", func(c *Config) { c.Quality = 1.2 }, false},
		{"quality exactly one", func(c *Config) { c.Quality = 1 }, true},
		{"negative history bytes", func(c *Config) { c.HistoryMaxBytes = -1 }, false},
		{"zero history limit", func(c *Config) { c.HistoryLimit = 0 }, false},
		{"unknown provider", func(c *Config) { c.Provider = "llama" }, false},
		{"backend without scheme", func(c *Config) { c.BackendURL = "localhost:8787" }, false},
		{"negative timeout", func(c *Config) { c.RequestTimeoutSeconds = -5 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("Validate() = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MaxDimension: 1024, DBMaxOpenConns: 5}
	overlay := &Config{MaxDimension: 512} // DBMaxOpenConns is 0 (zero value)

	result := Merge(base, overlay)

	if result.MaxDimension != 512 {
		t.Errorf("MaxDimension = %d, want 512 (overlay)", result.MaxDimension)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{ArchiveUseSSL: true}
	overlay := &Config{ArchiveUseSSL: false}

	result := Merge(base, overlay)

	if !result.ArchiveUseSSL {
		t.Error("ArchiveUseSSL should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"fish_history_clear", "fish_history_remove"}}
	overlay := &Config{DisabledTools: []string{"fish_history_remove", " fish_identify "}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}

	// Check all three are present
	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"fish_history_clear", "fish_history_remove", "fish_identify"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}

func TestMerge_AllowedPaths(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/srv/fish"}}
	overlay := &Config{AllowedPaths: []string{"/srv/fish", "/mnt/backup"}, AllowUnsafePaths: true}

	result := Merge(base, overlay)

	if len(result.AllowedPaths) != 2 {
		t.Errorf("AllowedPaths = %v, want 2 entries", result.AllowedPaths)
	}
	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestLoad_SetsBaseDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadWithEnv(tmpDir)
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.BaseDir != tmpDir {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, tmpDir)
	}
	if want := filepath.Join(tmpDir, "exports"); cfg.ExportsDir() != want {
		t.Errorf("ExportsDir() = %q, want %q", cfg.ExportsDir(), want)
	}
}
