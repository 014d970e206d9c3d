package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"labagent/internal/session"
)

// waitDelay bounds how long a killed command may keep its output pipes open
// through orphaned children.
const waitDelay = 2 * time.Second

const backgroundNote = "\n(background output truncated)"

func (d *Dispatcher) runCommand(ctx context.Context, c RunCommand) (result, error) {
	if err := d.sink.Append(session.CommandExec{Command: c.Command}); err != nil {
		return result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, d.commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", c.Command)
	cmd.Dir = d.guard.Root()
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fail(fmt.Sprintf("Error: Command timed out (%s limit)", formatLimit(d.commandTimeout)),
			fmt.Errorf("command timed out after %s", d.commandTimeout)), nil
	}

	text := stdoutBuf.String()
	if stderrBuf.Len() > 0 {
		text += "\nSTDERR: " + stderrBuf.String()
	}

	// The shell exited but a background child still holds the pipes.
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code > 0 {
			return fail(text+fmt.Sprintf("\n(exit code: %d)", code), fmt.Errorf("exit code %d", code)), nil
		}
		return ok(text + backgroundNote), nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() > 0 {
			code := exitErr.ExitCode()
			return fail(text+fmt.Sprintf("\n(exit code: %d)", code), fmt.Errorf("exit code %d", code)), nil
		}
		return fail(fmt.Sprintf("Error executing %s: %v", NameRunCommand, runErr), runErr), nil
	}
	return ok(text), nil
}

func formatLimit(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
