package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"labagent/internal/agent/domain"
	"labagent/internal/agent/ports"
	"labagent/internal/config"
	"labagent/internal/diff"
	"labagent/internal/llm"
	"labagent/internal/logging"
	"labagent/internal/observability"
	"labagent/internal/output"
	"labagent/internal/tools"
	"labagent/internal/workspace"
)

const dryRunReply = "Dry run: no reasoning service was contacted and no changes were made."

// Container holds the services of one CLI invocation.
type Container struct {
	Config  config.Config
	Logger  *observability.Logger
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
	Runtime *domain.SessionRuntime
}

type containerOptions struct {
	Out     io.Writer
	Err     io.Writer
	Verbose bool
	// DryRun replaces the reasoning service with a client that ends the
	// session on the first turn.
	DryRun bool
	// LLM, when set, is used instead of building a client from config.
	LLM ports.LLMClient
}

func buildContainer(cfg config.Config, opts containerOptions) (*Container, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	obsLogger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: opts.Err,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	c := &Container{Config: cfg, Logger: obsLogger}

	c.Metrics, err = observability.NewMetricsCollector(observability.MetricsConfig{
		Enabled: cfg.MetricsFile != "",
	})
	if err != nil {
		_ = obsLogger.Close()
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	c.Tracer, err = observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		ServiceName:    "labagent",
		ServiceVersion: appVersion(),
	})
	if err != nil {
		_ = obsLogger.Close()
		return nil, fmt.Errorf("create tracer: %w", err)
	}

	client := opts.LLM
	if client == nil {
		client, err = newLLMClient(cfg, opts.DryRun, logging.FromObservabilityWithComponent(obsLogger, "llm"))
		if err != nil {
			_ = c.Cleanup(context.Background())
			return nil, err
		}
	}

	snapshotter, err := workspace.NewSnapshotter(workspace.SnapshotOptions{
		Root:         cfg.Workspace,
		LogDir:       cfg.LogPath(),
		Exclude:      cfg.Exclude,
		PreviewChars: cfg.PreviewChars,
		Workers:      cfg.SnapshotWorkers,
		Logger:       logging.FromObservabilityWithComponent(obsLogger, "snapshot"),
		OnSkip: func(string, error) {
			c.Metrics.Workspace().RecordUnreadable()
		},
	})
	if err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}

	searcher, err := tools.NewHTMLSearcher(tools.SearchConfig{
		Endpoint: cfg.SearchEndpoint,
		Timeout:  cfg.SearchTimeout,
		MaxChars: cfg.SearchMaxChars,
		Logger:   logging.FromObservabilityWithComponent(obsLogger, "web_search"),
	})
	if err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}

	toolLogger := logging.FromObservabilityWithComponent(obsLogger, "tools")
	newDispatcher := func(sink domain.EventSink) (ports.ToolDispatcher, error) {
		return tools.NewDispatcher(tools.Config{
			Root:           cfg.Workspace,
			Sink:           sink,
			CommandTimeout: cfg.CommandTimeout,
			ResultChars:    cfg.ResultChars,
			Searcher:       searcher,
			Logger:         toolLogger,
		})
	}

	c.Runtime, err = domain.NewSessionRuntime(domain.Config{
		Workspace:        cfg.Workspace,
		LogDir:           cfg.LogPath(),
		SubjectID:        cfg.SubjectID,
		MaxTurns:         cfg.MaxTurns,
		MaxTokens:        cfg.MaxTokens,
		JournalTailChars: cfg.JournalTailChars,
	}, domain.Services{
		LLM:           client,
		Snapshotter:   snapshotter,
		NewDispatcher: newDispatcher,
		Patches:       diff.NewGenerator(3, false),
		Narrator:      output.NewCLINarrator(opts.Out, output.IsTerminal(opts.Out), opts.Verbose),
		Metrics:       c.Metrics,
		Tracer:        c.Tracer,
		Logger:        logging.FromObservabilityWithComponent(obsLogger, "runtime"),
	})
	if err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}
	return c, nil
}

func newLLMClient(cfg config.Config, dryRun bool, logger logging.Logger) (ports.LLMClient, error) {
	if dryRun {
		return llm.NewScriptedClient(cfg.Model, llm.Step{
			Response: llm.EndTurn(dryRunReply, ports.TokenUsage{}),
		}), nil
	}
	logger.Debug("Using reasoning service %s (key %s)", cfg.Anthropic.BaseURL, observability.SanitizeAPIKey(cfg.Anthropic.APIKey))
	client, err := llm.NewAnthropicClient(cfg.Model, llm.Config{
		APIKey:  cfg.Anthropic.APIKey,
		BaseURL: cfg.Anthropic.BaseURL,
		Timeout: cfg.Anthropic.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create reasoning client: %w", err)
	}
	return client, nil
}

// Cleanup writes the metrics textfile and releases exporters and log files.
func (c *Container) Cleanup(ctx context.Context) error {
	var errs []error
	if err := c.Metrics.WriteTextfile(c.Config.MetricsFile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	if err := c.Metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
	}
	if err := c.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	if err := c.Logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
