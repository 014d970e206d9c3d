package domain

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"labagent/internal/agent/ports"
	laberrors "labagent/internal/errors"
	"labagent/internal/logging"
	"labagent/internal/observability"
	"labagent/internal/session"
	"labagent/internal/workspace"
)

// sessionRun is the state of one session, from INIT to FINALIZED.
type sessionRun struct {
	runtime    *SessionRuntime
	logger     logging.Logger
	log        *session.Log
	dispatcher ports.ToolDispatcher
	model      string
	start      time.Time

	before      workspace.Snapshot
	system      string
	messages    []ports.Message
	turns       int
	usage       ports.TokenUsage
	termination string
}

func (s *sessionRun) execute(ctx context.Context) (*Result, error) {
	r := s.runtime
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	if err := s.loop(ctx); err != nil {
		return nil, err
	}

	// The record must be completed even when the caller gave up.
	changes, err := s.finalize(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}

	result := Result{
		SessionID:   s.log.SessionID(),
		LogPath:     s.log.Path(),
		Termination: s.termination,
		Turns:       s.turns,
		Changes:     changes,
		Usage:       s.usage,
		Duration:    r.clock().Sub(s.start),
	}
	r.svc.Metrics.RecordSession(ctx, s.termination, result.Duration)
	r.svc.Narrator.SessionFinished(result)
	s.logger.Info("session %s finished: %s after %d turns, %d files changed",
		result.SessionID, result.Termination, result.Turns, len(result.Changes))
	return &result, nil
}

// initialize takes the "before" snapshot and records session_start and the
// assembled prompt.
func (s *sessionRun) initialize(ctx context.Context) error {
	r := s.runtime
	before, err := r.snapshot(ctx, "before")
	if err != nil {
		return err
	}
	s.before = before

	r.svc.Narrator.SessionStarted(SessionInfo{
		SessionID: s.log.SessionID(),
		SubjectID: r.cfg.SubjectID,
		Model:     s.model,
		StartTime: s.start,
		Files:     before.Len(),
	})

	if err := s.append(session.SessionStart{
		SubjectID:         r.cfg.SubjectID,
		Model:             s.model,
		WorkspaceSnapshot: before.Hashes(),
	}); err != nil {
		return err
	}

	system, user, err := buildPrompt(r.cfg.Workspace, r.cfg.JournalTailChars)
	if err != nil {
		return err
	}
	if err := s.append(session.Prompt{System: system, User: user}); err != nil {
		return err
	}
	s.system = system
	s.messages = []ports.Message{ports.UserText(user)}
	return nil
}

// loop runs turns until the service finishes, fails, or the budget runs out.
func (s *sessionRun) loop(ctx context.Context) error {
	r := s.runtime
	for s.turns < r.cfg.MaxTurns {
		s.turns++
		r.svc.Narrator.TurnStarted(s.turns, r.cfg.MaxTurns)
		s.logger.Debug("=== Turn %d/%d ===", s.turns, r.cfg.MaxTurns)

		done, err := s.turn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	msg := fmt.Sprintf("Hit max turns limit (%d)", r.cfg.MaxTurns)
	r.svc.Narrator.Warning(msg)
	s.logger.Warn("%s", msg)
	s.termination = TerminationMaxTurns
	return s.append(session.Warning{Message: msg})
}

// turn performs one service call and, when requested, the tool calls that
// follow it. done reports that the session reached a terminal state.
func (s *sessionRun) turn(ctx context.Context) (done bool, err error) {
	r := s.runtime
	ctx, span := r.svc.Tracer.StartSpan(ctx, observability.SpanTurn, observability.TurnAttrs(s.model, s.turns)...)
	defer func() { observability.EndSpan(span, err) }()

	started := time.Now()
	resp, callErr := r.svc.LLM.Complete(ctx, ports.CompletionRequest{
		System:    s.system,
		Messages:  s.messages,
		Tools:     s.dispatcher.Definitions(),
		MaxTokens: r.cfg.MaxTokens,
		Metadata:  map[string]any{"session_id": s.log.SessionID()},
	})
	if callErr != nil {
		kind := laberrors.Classify(callErr)
		r.svc.Narrator.APIError(callErr)
		r.svc.Metrics.RecordAPIError(ctx, string(kind))
		s.logger.Error("turn %d: reasoning service failed (%s): %v", s.turns, kind, callErr)
		s.termination = TerminationAPIError
		return true, s.append(session.APIError{
			Error:     callErr.Error(),
			Turn:      s.turns,
			Kind:      string(kind),
			Transient: laberrors.IsTransient(callErr),
		})
	}

	s.usage.Add(resp.Usage)
	r.svc.Metrics.RecordTurn(ctx, s.model, time.Since(started), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	span.SetAttributes(observability.UsageAttrs(resp.Usage.InputTokens, resp.Usage.OutputTokens)...)
	span.SetAttributes(attribute.String(observability.AttrStopReason, resp.StopReason))

	if err := s.append(session.APIResponse{
		Turn:       s.turns,
		StopReason: resp.StopReason,
		Usage:      session.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		Content:    logContent(resp.Content),
	}); err != nil {
		return true, err
	}
	for _, text := range resp.Texts() {
		r.svc.Narrator.Reasoning(text)
		if err := s.append(session.Reasoning{Text: text}); err != nil {
			return true, err
		}
	}

	s.messages = append(s.messages, ports.Message{Role: ports.RoleAssistant, Content: resp.Content})

	uses := resp.ToolUses()
	if resp.StopReason == ports.StopEndTurn || len(uses) == 0 {
		s.termination = TerminationDone
		return true, nil
	}

	results, err := s.dispatch(ctx, uses)
	if err != nil {
		return true, err
	}
	if err := verifyToolResults(uses, results); err != nil {
		return true, err
	}
	s.messages = append(s.messages, ports.Message{Role: ports.RoleUser, Content: results})
	return false, nil
}

// dispatch runs the tool calls strictly in order and returns one
// tool_result block per call.
func (s *sessionRun) dispatch(ctx context.Context, uses []ports.ContentBlock) ([]ports.ContentBlock, error) {
	r := s.runtime
	results := make([]ports.ContentBlock, 0, len(uses))
	for _, use := range uses {
		r.svc.Narrator.ToolCall(use.Name, use.Input)

		toolCtx, span := r.svc.Tracer.StartSpan(ctx, observability.SpanToolExecute, observability.ToolAttrs(use.Name)...)
		started := time.Now()
		res, err := s.dispatcher.Dispatch(toolCtx, ports.ToolCall{ID: use.ID, Name: use.Name, Arguments: use.Input})
		observability.EndSpan(span, res.Error)
		if err != nil {
			return nil, fmt.Errorf("dispatch %s: %w", use.Name, err)
		}

		status := "success"
		if res.Error != nil {
			status = "error"
			r.svc.Narrator.ToolFailed(use.Name, res.Content)
		}
		r.svc.Metrics.RecordToolExecution(ctx, use.Name, status, time.Since(started))
		results = append(results, ports.ToolResultBlock(res.CallID, res.Content))
	}
	return results, nil
}

// finalize takes the "after" snapshot, records the diff and closes the log.
func (s *sessionRun) finalize(ctx context.Context) ([]workspace.Change, error) {
	r := s.runtime
	after, err := r.snapshot(ctx, "after")
	if err != nil {
		return nil, err
	}

	changes := workspace.Diff(s.before, after)
	r.svc.Patches.Annotate(changes)
	for _, c := range changes {
		r.svc.Metrics.Workspace().RecordChange(string(c.Action))
	}
	if err := s.append(session.WorkspaceDiff{FilesChanged: len(changes), Changes: changes}); err != nil {
		return nil, err
	}
	if err := s.log.Finalize(s.termination); err != nil {
		return nil, fmt.Errorf("finalize session log: %w", err)
	}
	return changes, nil
}

func (s *sessionRun) append(payload session.Payload) error {
	if err := s.log.Append(payload); err != nil {
		return fmt.Errorf("record %s: %w", payload.EventType(), err)
	}
	return nil
}

// verifyToolResults checks that results answer uses one-to-one, in order.
func verifyToolResults(uses, results []ports.ContentBlock) error {
	if len(uses) != len(results) {
		return fmt.Errorf("%w: %d calls, %d results", ErrToolResultMismatch, len(uses), len(results))
	}
	for i, use := range uses {
		if results[i].Type != ports.BlockToolResult || results[i].ToolUseID != use.ID {
			return fmt.Errorf("%w: call %q answered by %q", ErrToolResultMismatch, use.ID, results[i].ToolUseID)
		}
	}
	return nil
}

func logContent(blocks []ports.ContentBlock) []session.ContentBlock {
	out := make([]session.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, session.ContentBlock{
			Type:  b.Type,
			Text:  b.Text,
			ID:    b.ID,
			Name:  b.Name,
			Input: b.Input,
		})
	}
	return out
}
