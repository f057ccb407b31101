package sampler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Output is the captured result of one external command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner invokes an external introspection tool.
// A non-nil error means the tool could not be run to completion at all.
type Runner interface {
	Run(ctx context.Context, argv []string) (Output, error)
}

// pipeWaitDelay bounds how long Run waits for stdout/stderr to close after the
// tool was killed, e.g. when a grandchild inherited the pipes.
var pipeWaitDelay = time.Second

// ExecRunner runs commands with os/exec, bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// Run executes argv and captures both streams.
func (r ExecRunner) Run(ctx context.Context, argv []string) (Output, error) {
	if len(argv) == 0 {
		return Output{}, fmt.Errorf("empty command")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Output{}, fmt.Errorf("%s timed out after %s", argv[0], r.Timeout)
		}
		return Output{}, ctxErr
	}

	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return Output{}, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return out, nil
}
