package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"labagent/internal/agent/ports"
	"labagent/internal/diff"
	"labagent/internal/logging"
	"labagent/internal/observability"
	"labagent/internal/session"
	"labagent/internal/workspace"
)

const (
	defaultMaxTurns         = 50
	defaultMaxTokens        = 4096
	defaultJournalTailChars = 5000
)

// Config holds the per-session budgets and locations.
type Config struct {
	Workspace        string
	LogDir           string
	SubjectID        string
	MaxTurns         int
	MaxTokens        int
	JournalTailChars int
}

// Services are the collaborators of a session. LLM, Snapshotter and
// NewDispatcher are required; the rest default to no-ops.
type Services struct {
	LLM           ports.LLMClient
	Snapshotter   Snapshotter
	NewDispatcher DispatcherFactory
	Patches       *diff.Generator
	Narrator      Narrator
	Metrics       *observability.MetricsCollector
	Tracer        *observability.TracerProvider
	Logger        logging.Logger
	Clock         func() time.Time
	LogOptions    []session.Option
}

// SessionRuntime drives sessions. It holds no per-session state and may be
// reused for consecutive runs.
type SessionRuntime struct {
	cfg    Config
	svc    Services
	logger logging.Logger
	clock  func() time.Time
}

// NewSessionRuntime validates cfg and svc and fills in defaults.
func NewSessionRuntime(cfg Config, svc Services) (*SessionRuntime, error) {
	if svc.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if svc.Snapshotter == nil {
		return nil, fmt.Errorf("snapshotter is required")
	}
	if svc.NewDispatcher == nil {
		return nil, fmt.Errorf("dispatcher factory is required")
	}
	if strings.TrimSpace(cfg.Workspace) == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		return nil, fmt.Errorf("log dir is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.JournalTailChars <= 0 {
		cfg.JournalTailChars = defaultJournalTailChars
	}
	if strings.TrimSpace(cfg.SubjectID) == "" {
		cfg.SubjectID = "unknown"
	}
	if svc.Patches == nil {
		svc.Patches = diff.NewGenerator(3, false)
	}
	if svc.Narrator == nil {
		svc.Narrator = nopNarrator{}
	}
	if svc.Tracer == nil {
		svc.Tracer = observability.NewNoopTracerProvider()
	}
	clock := svc.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &SessionRuntime{
		cfg:    cfg,
		svc:    svc,
		logger: logging.OrNop(svc.Logger),
		clock:  clock,
	}, nil
}

// Run executes one session to completion. A non-nil error means the
// session could not be recorded faithfully (log persistence failure,
// snapshot failure, tool-result mismatch); reasoning-service failures are
// not errors, they end the session with TerminationAPIError.
func (r *SessionRuntime) Run(ctx context.Context) (*Result, error) {
	start := r.clock().UTC()
	sessionID := session.NewID(r.cfg.SubjectID, start)
	ctx = observability.ContextWithSessionID(ctx, sessionID)

	ctx, span := r.svc.Tracer.StartSpan(ctx, observability.SpanSession)
	result, err := r.run(ctx, sessionID, start)
	observability.EndSpan(span, err)
	return result, err
}

func (r *SessionRuntime) run(ctx context.Context, sessionID string, start time.Time) (*Result, error) {
	opts := append([]session.Option{session.WithClock(r.clock)}, r.svc.LogOptions...)
	log, err := session.New(r.cfg.LogDir, sessionID, start, opts...)
	if err != nil {
		return nil, err
	}

	dispatcher, err := r.svc.NewDispatcher(log)
	if err != nil {
		return nil, fmt.Errorf("create tool dispatcher: %w", err)
	}

	s := &sessionRun{
		runtime:    r,
		logger:     logging.WithContext(ctx, r.logger),
		log:        log,
		dispatcher: dispatcher,
		model:      r.svc.LLM.Model(),
		start:      start,
	}
	return s.execute(ctx)
}

func (r *SessionRuntime) snapshot(ctx context.Context, phase string) (workspace.Snapshot, error) {
	ctx, span := r.svc.Tracer.StartSpan(ctx, observability.SpanSnapshot)
	snap, err := r.svc.Snapshotter.Snapshot(ctx)
	observability.EndSpan(span, err)
	if err != nil {
		return workspace.Snapshot{}, fmt.Errorf("snapshot workspace (%s): %w", phase, err)
	}
	r.svc.Metrics.Workspace().ObserveSnapshot(phase, snap.Len(), snap.TotalSize())
	r.logger.Debug("snapshot %s: %d files", phase, snap.Len())
	return snap, nil
}
