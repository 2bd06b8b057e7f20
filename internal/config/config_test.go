package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		keyListenAddr, keyDBPath, keyLogLevel, keyMaxConcurrent, keyApplicationsDir,
		keyHistoryCapacity, keyKeepAliveInterval, keyDefaultRunner, keyWatchCatalog,
	} {
		name := envPrefix + "_" + strings.ToUpper(key)
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("MAX_CONCURRENT", "")
	os.Unsetenv("MAX_CONCURRENT")
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", cfg.MaxConcurrent)
	}
	if cfg.HistoryCapacity != 1000 {
		t.Errorf("HistoryCapacity = %d, want 1000", cfg.HistoryCapacity)
	}
	if cfg.KeepAliveInterval != 15*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 15s", cfg.KeepAliveInterval)
	}
	if cfg.ApplicationsDir != "applications" {
		t.Errorf("ApplicationsDir = %q, want applications", cfg.ApplicationsDir)
	}
	if got := cfg.Runners[cfg.DefaultRunner]; got != "npx playwright test" {
		t.Errorf("default runner command = %q, want %q", got, "npx playwright test")
	}
	if !cfg.WatchCatalog {
		t.Error("WatchCatalog = false, want true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONDUCTOR_LISTEN_ADDR", ":9090")
	t.Setenv("CONDUCTOR_DB_PATH", "/tmp/test.db")
	t.Setenv("CONDUCTOR_LOG_LEVEL", "debug")
	t.Setenv("CONDUCTOR_KEEPALIVE_INTERVAL", "5s")
	t.Setenv("CONDUCTOR_WATCH_CATALOG", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.KeepAliveInterval != 5*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 5s", cfg.KeepAliveInterval)
	}
	if cfg.WatchCatalog {
		t.Error("WatchCatalog = true, want false")
	}
}

func TestLoadBareMaxConcurrent(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_CONCURRENT", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.MaxConcurrent)
	}

	t.Setenv("CONDUCTOR_MAX_CONCURRENT", "7")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrent != 7 {
		t.Errorf("prefixed MaxConcurrent = %d, want 7", cfg.MaxConcurrent)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	if err := os.WriteFile(".env", []byte("CONDUCTOR_APPLICATIONS_DIR=/srv/apps\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("CONDUCTOR_APPLICATIONS_DIR") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ApplicationsDir != "/srv/apps" {
		t.Errorf("ApplicationsDir = %q, want /srv/apps", cfg.ApplicationsDir)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	content := `
listen_addr: ":4000"
max_concurrent: 4
default_runner: shell
runners:
  shell: "sh -c"
  playwright: "npx playwright test --reporter=line"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONDUCTOR_LISTEN_ADDR", ":5000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want env to win over file", cfg.ListenAddr)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", cfg.MaxConcurrent)
	}
	if cfg.DefaultRunner != "shell" || cfg.Runners["shell"] != "sh -c" {
		t.Errorf("runners = %v (default %q), want shell", cfg.Runners, cfg.DefaultRunner)
	}
}

func TestLoadRunnerNamesLowercased(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	content := `
default_runner: MyRunner
runners:
  MyRunner: "./run-e2e.sh"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultRunner != "myrunner" {
		t.Errorf("DefaultRunner = %q, want %q", cfg.DefaultRunner, "myrunner")
	}
	if cfg.Runners["myrunner"] != "./run-e2e.sh" {
		t.Errorf("Runners = %v, want lowercased key myrunner", cfg.Runners)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"zero max concurrent", map[string]string{"CONDUCTOR_MAX_CONCURRENT": "0"}, ""},
		{"unknown default runner", map[string]string{"CONDUCTOR_DEFAULT_RUNNER": "cypress"}, ""},
		{"missing config file", nil, "does-not-exist.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.file); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
