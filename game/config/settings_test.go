package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
)

func TestLoadSettings_MissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "rover.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got %v", err)
	}
	if s.Grid != engine.DefaultGridSize {
		t.Errorf("Expected default grid, got %s", s.Grid)
	}
	if s.StepDelay != 300*time.Millisecond {
		t.Errorf("Expected 300ms step delay, got %s", s.StepDelay)
	}
	if s.HQ.RoverID != "12856496" {
		t.Errorf("Expected default rover id, got %s", s.HQ.RoverID)
	}
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.yaml")
	content := `
server:
  port: 9090
  debug: true
grid:
  width: 12
  height: 24
step_delay: 50ms
paths:
  journal: runs.db
hq:
  rover_id: "42"
sessions:
  max_age: 1h
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", s.Server.Port, 9090},
		{"host kept", s.Server.Host, "localhost"},
		{"debug", s.Server.Debug, true},
		{"grid", s.Grid, engine.GridSize{Width: 12, Height: 24}},
		{"step delay", s.StepDelay, 50 * time.Millisecond},
		{"journal", s.Paths.Journal, "runs.db"},
		{"layouts kept", s.Paths.Layouts, "layouts"},
		{"rover id", s.HQ.RoverID, "42"},
		{"max age", s.Sessions.MaxAge, time.Hour},
		{"cleanup kept", s.Sessions.CleanupInterval, 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [port"},
		{"negative delay", "step_delay: -1s"},
		{"bad port", "server:\n  port: 70000"},
		{"negative grid", "grid:\n  width: -1\n  height: 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rover.yaml")
			os.WriteFile(path, []byte(tt.content), 0644)
			if _, err := LoadSettings(path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":          "3000",
		"HOST":          "0.0.0.0",
		"STEP_DELAY":    "1s",
		"NGROK_ENABLED": "true",
		"ROVER_ID":      "7",
		"JOURNAL_PATH":  "j.db",
	}
	s := Defaults()
	if err := s.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if s.Addr() != "0.0.0.0:3000" {
		t.Errorf("Expected 0.0.0.0:3000, got %s", s.Addr())
	}
	if s.StepDelay != time.Second || !s.Ngrok.Enabled || s.HQ.RoverID != "7" || s.Paths.Journal != "j.db" {
		t.Errorf("Unexpected settings after env: %+v", s)
	}

	bad := Defaults()
	if err := bad.ApplyEnv(func(k string) string {
		if k == "PORT" {
			return "http"
		}
		return ""
	}); err == nil {
		t.Error("Expected error for non-numeric PORT")
	}
}
