package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"labagent/internal/infra/filestore"
)

const envPrefix = "LAB"

type loadOptions struct {
	configFile  string
	searchPaths []string
	binders     []func(*viper.Viper) error
	overrides   map[string]any
}

// Option customises Load.
type Option func(*loadOptions)

// WithConfigFile loads an explicit config file; a missing file is an error.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = strings.TrimSpace(path)
	}
}

// WithSearchPaths replaces the directories searched for labagent.{yaml,json}.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) {
		o.searchPaths = append([]string(nil), paths...)
	}
}

// WithBinder registers a hook that binds extra sources (typically cobra
// flags) onto the viper instance before unmarshalling.
func WithBinder(bind func(*viper.Viper) error) Option {
	return func(o *loadOptions) {
		if bind != nil {
			o.binders = append(o.binders, bind)
		}
	}
}

// WithOverrides sets values with the highest precedence.
func WithOverrides(values map[string]any) Option {
	return func(o *loadOptions) {
		o.overrides = values
	}
}

// Load resolves the configuration: defaults, then config file, then
// environment (LAB_* plus the legacy SUBJECT_ID, MODEL and ANTHROPIC_API_KEY
// names), then bound flags and overrides.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		searchPaths: []string{".", "$HOME/.config/labagent", "$HOME"},
	}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	legacyEnv := map[string][]string{
		"subject_id":         {"LAB_SUBJECT_ID", "SUBJECT_ID"},
		"model":              {"LAB_MODEL", "MODEL"},
		"anthropic.api_key":  {"LAB_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"anthropic.base_url": {"LAB_ANTHROPIC_BASE_URL", "ANTHROPIC_BASE_URL"},
	}
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := readConfigFile(v, options); err != nil {
		return Config{}, err
	}

	for _, bind := range options.binders {
		if err := bind(v); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	for key, value := range options.overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace", DefaultWorkspace)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("subject_id", DefaultSubjectID)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("journal_tail_chars", DefaultJournalTailChars)
	v.SetDefault("preview_chars", DefaultPreviewChars)
	v.SetDefault("result_chars", DefaultResultChars)
	v.SetDefault("command_timeout", DefaultCommandTimeout)
	v.SetDefault("search_timeout", DefaultSearchTimeout)
	v.SetDefault("search_max_chars", DefaultSearchMaxChars)
	v.SetDefault("search_endpoint", DefaultSearchEndpoint)
	v.SetDefault("snapshot_workers", DefaultSnapshotWorkers)
	v.SetDefault("exclude", []string{})
	v.SetDefault("metrics_file", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", DefaultAnthropicBaseURL)
	v.SetDefault("anthropic.timeout", DefaultAnthropicTimeout)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "otlp")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.cors", false)
	v.SetDefault("server.poll_interval", DefaultServerPoll)
}

func readConfigFile(v *viper.Viper, options loadOptions) error {
	if options.configFile != "" {
		v.SetConfigFile(filestore.ResolvePath(options.configFile, ""))
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", options.configFile, err)
		}
		return nil
	}

	v.SetConfigName("labagent")
	for _, path := range options.searchPaths {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Workspace = strings.TrimSpace(cfg.Workspace)
	if cfg.Workspace != "" {
		cfg.Workspace = filestore.ResolvePath(cfg.Workspace, "")
		if abs, err := filepath.Abs(cfg.Workspace); err == nil {
			cfg.Workspace = abs
		}
	}
	cfg.LogDir = strings.TrimSpace(cfg.LogDir)
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	cfg.SubjectID = strings.TrimSpace(cfg.SubjectID)
	if cfg.SubjectID == "" {
		cfg.SubjectID = DefaultSubjectID
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Anthropic.APIKey = strings.TrimSpace(cfg.Anthropic.APIKey)
	cfg.Anthropic.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Anthropic.BaseURL), "/")
	cfg.SearchEndpoint = strings.TrimSpace(cfg.SearchEndpoint)
	cfg.Server.Addr = strings.TrimSpace(cfg.Server.Addr)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.SnapshotWorkers <= 0 {
		cfg.SnapshotWorkers = 1
	}
	if cfg.MetricsFile != "" {
		cfg.MetricsFile = filestore.ResolvePath(cfg.MetricsFile, "")
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = filestore.ResolvePath(cfg.Logging.File, "")
	}

	patterns := cfg.Exclude[:0]
	for _, p := range cfg.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	cfg.Exclude = patterns
}
