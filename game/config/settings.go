package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
)

// DefaultSettingsFile is read from the working directory when present
const DefaultSettingsFile = "rover.yaml"

// Settings is the rover.yaml file. Zero fields fall back to Defaults().
type Settings struct {
	Server    ServerSettings  `yaml:"server"`
	Grid      engine.GridSize `yaml:"grid"`
	StepDelay time.Duration   `yaml:"step_delay"`
	Paths     PathSettings    `yaml:"paths"`
	HQ        HQSettings      `yaml:"hq"`
	Sessions  SessionSettings `yaml:"sessions"`
	Ngrok     NgrokSettings   `yaml:"ngrok"`
}

type ServerSettings struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

type PathSettings struct {
	Layouts  string `yaml:"layouts"`
	Sessions string `yaml:"sessions"`
	Journal  string `yaml:"journal"`
}

type HQSettings struct {
	URL     string        `yaml:"url"`
	RoverID string        `yaml:"rover_id"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionSettings struct {
	MaxAge          time.Duration `yaml:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
}

type NgrokSettings struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// Defaults returns the built-in settings
func Defaults() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "localhost",
			Port: 8080,
		},
		Grid:      engine.DefaultGridSize,
		StepDelay: engine.DefaultStepDelay,
		Paths: PathSettings{
			Layouts:  "layouts",
			Sessions: "sessions",
		},
		HQ: HQSettings{
			URL:     "https://roverapi.reev.ca",
			RoverID: "12856496",
			Timeout: 10 * time.Second,
		},
		Sessions: SessionSettings{
			MaxAge:          24 * time.Hour,
			CleanupInterval: 30 * time.Minute,
			SyncInterval:    5 * time.Minute,
		},
	}
}

// LoadSettings reads path over Defaults(). A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	s := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	s.fillDefaults()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ApplyEnv overrides settings from environment variables
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("HOST", &s.Server.Host)
	str("LAYOUTS_DIR", &s.Paths.Layouts)
	str("SESSIONS_DIR", &s.Paths.Sessions)
	str("JOURNAL_PATH", &s.Paths.Journal)
	str("ROVER_HQ_URL", &s.HQ.URL)
	str("ROVER_ID", &s.HQ.RoverID)
	str("NGROK_AUTHTOKEN", &s.Ngrok.AuthToken)
	str("NGROK_DOMAIN", &s.Ngrok.Domain)

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		s.Server.Port = port
	}
	if v := getenv("STEP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STEP_DELAY: %w", err)
		}
		s.StepDelay = d
	}
	if v := getenv("NGROK_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NGROK_ENABLED: %w", err)
		}
		s.Ngrok.Enabled = enabled
	}
	return s.Validate()
}

// Validate checks ranges that would otherwise fail later at startup
func (s Settings) Validate() error {
	if err := s.Grid.Validate(); err != nil {
		return err
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", s.Server.Port)
	}
	if s.StepDelay < 0 {
		return fmt.Errorf("step_delay must not be negative: %s", s.StepDelay)
	}
	if s.HQ.Timeout < 0 {
		return fmt.Errorf("hq.timeout must not be negative: %s", s.HQ.Timeout)
	}
	return nil
}

// Addr returns host:port for the HTTP listener
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}

func (s *Settings) fillDefaults() {
	d := Defaults()
	if s.Grid == (engine.GridSize{}) {
		s.Grid = d.Grid
	}
	if s.Server.Host == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if s.Paths.Layouts == "" {
		s.Paths.Layouts = d.Paths.Layouts
	}
	if s.Paths.Sessions == "" {
		s.Paths.Sessions = d.Paths.Sessions
	}
	if s.HQ.URL == "" {
		s.HQ.URL = d.HQ.URL
	}
	if s.HQ.RoverID == "" {
		s.HQ.RoverID = d.HQ.RoverID
	}
	if s.HQ.Timeout == 0 {
		s.HQ.Timeout = d.HQ.Timeout
	}
	if s.Sessions.MaxAge == 0 {
		s.Sessions.MaxAge = d.Sessions.MaxAge
	}
	if s.Sessions.CleanupInterval == 0 {
		s.Sessions.CleanupInterval = d.Sessions.CleanupInterval
	}
	if s.Sessions.SyncInterval == 0 {
		s.Sessions.SyncInterval = d.Sessions.SyncInterval
	}
}
