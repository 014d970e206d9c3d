package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultWorkspace        = "/workspace"
	DefaultLogDir           = "logs"
	DefaultSubjectID        = "unknown"
	DefaultModel            = "claude-sonnet-4-20250514"
	DefaultMaxTurns         = 50
	DefaultMaxTokens        = 4096
	DefaultJournalTailChars = 5000
	DefaultPreviewChars     = 10000
	DefaultResultChars      = 2000
	DefaultCommandTimeout   = 60 * time.Second
	DefaultSearchTimeout    = 30 * time.Second
	DefaultSearchMaxChars   = 5000
	DefaultSearchEndpoint   = "https://html.duckduckgo.com/html/"
	DefaultSnapshotWorkers  = 8
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	DefaultAnthropicTimeout = 120 * time.Second
	DefaultServerAddr       = "127.0.0.1:8765"
	DefaultServerPoll       = 500 * time.Millisecond
)

// Config stores all configuration of a session run.
// The values are read by viper from defaults, a config file, the environment
// and command-line flags, in increasing precedence.
type Config struct {
	Workspace        string        `mapstructure:"workspace"`
	LogDir           string        `mapstructure:"log_dir"` // relative to Workspace unless absolute
	SubjectID        string        `mapstructure:"subject_id"`
	Model            string        `mapstructure:"model"`
	MaxTurns         int           `mapstructure:"max_turns"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	JournalTailChars int           `mapstructure:"journal_tail_chars"`
	PreviewChars     int           `mapstructure:"preview_chars"`
	ResultChars      int           `mapstructure:"result_chars"`
	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
	SearchMaxChars   int           `mapstructure:"search_max_chars"`
	SearchEndpoint   string        `mapstructure:"search_endpoint"`
	SnapshotWorkers  int           `mapstructure:"snapshot_workers"`
	Exclude          []string      `mapstructure:"exclude"` // gitignore-style patterns
	MetricsFile      string        `mapstructure:"metrics_file"`

	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AnthropicConfig configures the reasoning-service client.
type AnthropicConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig configures operator logging (not the session log).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// TracingConfig configures optional OTLP span export.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"` // otlp or zipkin
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ServerConfig configures the read-only session log API.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	EnableCORS   bool          `mapstructure:"cors"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LogPath returns the absolute directory holding session logs.
func (c Config) LogPath() string {
	if filepath.IsAbs(c.LogDir) {
		return filepath.Clean(c.LogDir)
	}
	return filepath.Join(c.Workspace, c.LogDir)
}

// Validate rejects configurations the runtime cannot honour.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Workspace) == "" {
		problems = append(problems, "workspace must be set")
	}
	if strings.TrimSpace(c.Model) == "" {
		problems = append(problems, "model must be set")
	}
	if c.MaxTurns <= 0 {
		problems = append(problems, "max_turns must be positive")
	}
	if c.MaxTokens <= 0 {
		problems = append(problems, "max_tokens must be positive")
	}
	if c.CommandTimeout <= 0 {
		problems = append(problems, "command_timeout must be positive")
	}
	if c.SearchTimeout <= 0 {
		problems = append(problems, "search_timeout must be positive")
	}
	if c.Server.PollInterval <= 0 {
		problems = append(problems, "server.poll_interval must be positive")
	}
	for name, v := range map[string]int{
		"journal_tail_chars": c.JournalTailChars,
		"preview_chars":      c.PreviewChars,
		"result_chars":       c.ResultChars,
		"search_max_chars":   c.SearchMaxChars,
	} {
		if v <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
