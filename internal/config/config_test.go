package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every BRAIN_* override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvHome, EnvPanelAddr, EnvLogLevel, EnvCopyFeedbackMS} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.CopyFeedbackMS != def.CopyFeedbackMS {
		t.Fatalf("CopyFeedbackMS = %d, want %d", cfg.CopyFeedbackMS, def.CopyFeedbackMS)
	}
	if cfg.PanelAddr != def.PanelAddr {
		t.Fatalf("PanelAddr = %q, want %q", cfg.PanelAddr, def.PanelAddr)
	}
	if cfg.CopyFeedback() != 1500*time.Millisecond {
		t.Fatalf("CopyFeedback() = %v, want 1.5s", cfg.CopyFeedback())
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"copy_feedback_ms": 500, "panel_addr": "127.0.0.1:9000"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CopyFeedbackMS != 500 {
		t.Fatalf("CopyFeedbackMS = %d, want %d", cfg.CopyFeedbackMS, 500)
	}
	if cfg.PanelAddr != "127.0.0.1:9000" {
		t.Fatalf("PanelAddr = %q, want %q", cfg.PanelAddr, "127.0.0.1:9000")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
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
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["brain_delete", "brain_update"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "brain_delete" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "brain_delete")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPanelAddr, "localhost:1234")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvCopyFeedbackMS, "250")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PanelAddr != "localhost:1234" {
		t.Errorf("PanelAddr = %q", cfg.PanelAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.CopyFeedbackMS != 250 {
		t.Errorf("CopyFeedbackMS = %d", cfg.CopyFeedbackMS)
	}
}

func TestLoad_EnvInvalidNumberIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCopyFeedbackMS, "soon")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CopyFeedbackMS != DefaultConfig().CopyFeedbackMS {
		t.Errorf("CopyFeedbackMS = %d, want default", cfg.CopyFeedbackMS)
	}
}

func TestBaseDir(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHome, "/tmp/brain-test-home")

	dir, err := BaseDir()
	if err != nil {
		t.Fatalf("BaseDir() error = %v", err)
	}
	if dir != "/tmp/brain-test-home" {
		t.Errorf("BaseDir() = %q", dir)
	}

	t.Setenv(EnvHome, "")
	dir, err = BaseDir()
	if err != nil {
		t.Fatalf("BaseDir() error = %v", err)
	}
	if filepath.Base(dir) != ".brain" {
		t.Errorf("BaseDir() = %q, want suffix .brain", dir)
	}
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
}

func TestLoadDotEnv_SetsVariables(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BRAIN_TEST_DOTENV=loaded\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Chdir(dir)
	t.Setenv("BRAIN_TEST_DOTENV", "")
	os.Unsetenv("BRAIN_TEST_DOTENV")

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("BRAIN_TEST_DOTENV"); got != "loaded" {
		t.Errorf("BRAIN_TEST_DOTENV = %q, want %q", got, "loaded")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	clearEnv(t)
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"copy_feedback_ms": 800, "disabled_tools": ["brain_delete"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	brainDir := filepath.Join(repoRoot, ".brain")
	if err := os.MkdirAll(brainDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"copy_feedback_ms": 300, "disabled_tools": ["brain_update"]}`
	if err := os.WriteFile(filepath.Join(brainDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.CopyFeedbackMS != 300 {
		t.Errorf("CopyFeedbackMS = %d, want 300 (repo override)", cfg.CopyFeedbackMS)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.CopyFeedbackMS != 1500 {
		t.Errorf("CopyFeedbackMS = %d, want 1500", cfg.CopyFeedbackMS)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{CopyFeedbackMS: 1500, DBMaxOpenConns: 5, PanelAddr: "a:1"}
	overlay := &Config{CopyFeedbackMS: 200}

	result := Merge(base, overlay)

	if result.CopyFeedbackMS != 200 {
		t.Errorf("CopyFeedbackMS = %d, want 200 (overlay)", result.CopyFeedbackMS)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.PanelAddr != "a:1" {
		t.Errorf("PanelAddr = %q, want a:1", result.PanelAddr)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"brain_delete", "brain_pin"}}
	overlay := &Config{DisabledTools: []string{"brain_pin", " brain_update "}}

	result := Merge(base, overlay)

	want := []string{"brain_delete", "brain_pin", "brain_update"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestMerge_AllowedPaths(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/srv/a"}}
	overlay := &Config{AllowedPaths: []string{"/srv/b", "/srv/a"}, AllowUnsafePaths: true}

	result := Merge(base, overlay)

	if len(result.AllowedPaths) != 2 {
		t.Errorf("AllowedPaths = %v, want 2 entries", result.AllowedPaths)
	}
	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths = false, want true")
	}
}

func TestExportsDir(t *testing.T) {
	if got := ExportsDir("/x/.brain"); got != filepath.Join("/x/.brain", "exports") {
		t.Errorf("ExportsDir() = %q", got)
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	brainDir := filepath.Join(tmpDir, ".brain")
	if err := os.MkdirAll(brainDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(brainDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(subdir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}
