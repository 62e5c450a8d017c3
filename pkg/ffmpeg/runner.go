package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// maxStderrBytes bounds how much diagnostic output is retained per call.
const maxStderrBytes = 64 << 10

// Invoker runs one external tool invocation per call and reports failures as
// *Error. It never retries.
type Invoker struct {
	// Binary is the executable to run. Empty means "ffmpeg" from PATH.
	Binary string
	// Timeout bounds each invocation. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// NewInvoker returns an Invoker for binary with a per-call timeout.
func NewInvoker(binary string, timeout time.Duration) *Invoker {
	return &Invoker{Binary: binary, Timeout: timeout}
}

func (i *Invoker) binary() string {
	if i == nil || strings.TrimSpace(i.Binary) == "" {
		return "ffmpeg"
	}
	return i.Binary
}

// Exec runs a built command.
func (i *Invoker) Exec(ctx context.Context, cmd *Command) error {
	return i.Run(ctx, cmd.Build())
}

// Run executes the binary with args, blocking until it exits. A non-zero
// exit, a timeout or a cancelled ctx all yield an *Error carrying the
// captured stderr.
func (i *Invoker) Run(ctx context.Context, args []string) error {
	if i != nil && i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, i.binary(), args...)
	cmd.WaitDelay = 5 * time.Second

	stderr := &tailBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	// Prefer the context error so callers can detect timeouts with errors.Is.
	cause := runErr
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause = fmt.Errorf("%w (%v)", ctxErr, runErr)
	}
	return &Error{
		Binary: i.binary(),
		Args:   args,
		Stderr: stderr.String(),
		Err:    cause,
	}
}

// Error represents a failed tool invocation.
type Error struct {
	Binary string
	Args   []string
	Stderr string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	if tail := e.StderrTail(3); tail != "" {
		return fmt.Sprintf("%s: %v: %s", e.binaryName(), e.Err, tail)
	}
	return fmt.Sprintf("%s: %v", e.binaryName(), e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// TimedOut reports whether the invocation was killed by its deadline.
func (e *Error) TimedOut() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// StderrTail returns the last n non-empty stderr lines.
func (e *Error) StderrTail(n int) string {
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Command returns the command line that was executed.
func (e *Error) Command() string {
	return e.binaryName() + " " + strings.Join(e.Args, " ")
}

func (e *Error) binaryName() string {
	if e.Binary == "" {
		return "ffmpeg"
	}
	return e.Binary
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
		t.truncated = true
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	if t.truncated {
		return "[...truncated...]\n" + t.buf.String()
	}
	return t.buf.String()
}
