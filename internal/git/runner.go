package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ===================
// Command Execution
// ===================

const (
	// DefaultTimeout bounds git subprocesses that only touch local state.
	DefaultTimeout = 30 * time.Second

	// DefaultNetTimeout bounds git subprocesses that talk to a remote
	// (ls-remote, push). Network operations need more headroom.
	DefaultNetTimeout = 2 * time.Minute

	// maxCapture caps how many bytes of subprocess output are retained.
	// Anything past the cap is executed but discarded.
	maxCapture = 64 * 1024
)

// boundedBuffer retains the first maxCapture bytes written to it and
// silently drops the rest, so a runaway subprocess cannot balloon memory.
type boundedBuffer struct {
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if remaining := maxCapture - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	// Report full consumption so the subprocess never sees a write error.
	return len(p), nil
}

func (b *boundedBuffer) Len() int       { return b.buf.Len() }
func (b *boundedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *boundedBuffer) String() string { return b.buf.String() }

// Exec executes a git subcommand in workDir with a timeout and bounded
// output capture. On expiry the subprocess is forcibly terminated and the
// error wraps ErrTimeout.
//
// Example:
//
//	output, err := Exec(ctx, 30*time.Second, projectDir, "status", "--porcelain")
func Exec(ctx context.Context, timeout time.Duration, workDir string, args ...string) ([]byte, error) {
	var stdout boundedBuffer
	err := execInto(ctx, timeout, workDir, &stdout, args...)
	if err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// ExecQuiet executes a git subcommand and discards stdout entirely. Use it
// for commands whose output is high volume and uninteresting (add, push).
// Stderr is still captured for error reporting.
func ExecQuiet(ctx context.Context, timeout time.Duration, workDir string, args ...string) error {
	return execInto(ctx, timeout, workDir, io.Discard, args...)
}

func execInto(ctx context.Context, timeout time.Duration, workDir string, stdout io.Writer, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir

	var stderr boundedBuffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	// Distinguish a timeout kill from an ordinary non-zero exit.
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("git %s: %w", firstArg(args), ErrTimeout)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ErrGitNotAvailable
	}

	// Include stderr in the error message for debugging.
	if stderr.Len() > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return err
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// ===================
// Output Parsing
// ===================

// ParseLines splits command output into non-empty trimmed lines.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}
