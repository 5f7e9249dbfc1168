package git

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestExec(t *testing.T) {
	repoPath, cleanup := setupTestRepo(t)
	defer cleanup()

	out, err := Exec(context.Background(), 10*time.Second, repoPath, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if TrimOutput(out) != "true" {
		t.Errorf("Exec() output = %q, want true", TrimOutput(out))
	}
}

func TestExecFailureIncludesStderr(t *testing.T) {
	repoPath, cleanup := setupTestRepo(t)
	defer cleanup()

	_, err := Exec(context.Background(), 10*time.Second, repoPath, "rev-parse", "--verify", "no-such-ref")
	if err == nil {
		t.Fatal("Exec() succeeded on bad ref, want error")
	}
	// git writes the failure reason to stderr, which must surface in the error
	if !bytes.Contains([]byte(err.Error()), []byte("no-such-ref")) &&
		!bytes.Contains([]byte(err.Error()), []byte("fatal")) {
		t.Errorf("Exec() error %q does not include stderr detail", err)
	}
}

func TestExecTimeout(t *testing.T) {
	repoPath, cleanup := setupTestRepo(t)
	defer cleanup()

	// A nanosecond deadline expires before any subprocess can finish
	_, err := Exec(context.Background(), time.Nanosecond, repoPath, "status")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Exec() error = %v, want ErrTimeout", err)
	}
}

func TestExecQuiet(t *testing.T) {
	repoPath, cleanup := setupTestRepo(t)
	defer cleanup()

	if err := ExecQuiet(context.Background(), 10*time.Second, repoPath, "status"); err != nil {
		t.Errorf("ExecQuiet() failed: %v", err)
	}
}

func TestBoundedBuffer(t *testing.T) {
	var b boundedBuffer

	chunk := bytes.Repeat([]byte("x"), 1024)
	total := 0
	for total < maxCapture*2 {
		n, err := b.Write(chunk)
		if err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		if n != len(chunk) {
			t.Fatalf("Write() = %d, want %d (writer must report full consumption)", n, len(chunk))
		}
		total += n
	}

	if b.Len() != maxCapture {
		t.Errorf("Len() = %d after overflow, want %d", b.Len(), maxCapture)
	}
}

func TestParseLines(t *testing.T) {
	out := []byte("one\n\n  two  \nthree\n")
	lines := ParseLines(out)

	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("ParseLines() returned %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("ParseLines()[%d] = %q, want %q", i, lines[i], want[i])
		}
	}

	if got := ParseLines(nil); got != nil {
		t.Errorf("ParseLines(nil) = %v, want nil", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrTimeout) {
		t.Error("IsRetryable(ErrTimeout) = false, want true")
	}
	if !IsRetryable(ErrPushRejected) {
		t.Error("IsRetryable(ErrPushRejected) = false, want true")
	}
	if IsRetryable(ErrNotARepo) {
		t.Error("IsRetryable(ErrNotARepo) = true, want false")
	}
	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true, want false")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrNotARepo) {
		t.Error("IsFatal(ErrNotARepo) = false, want true")
	}
	if !IsFatal(ErrGitNotAvailable) {
		t.Error("IsFatal(ErrGitNotAvailable) = false, want true")
	}
	if IsFatal(ErrTimeout) {
		t.Error("IsFatal(ErrTimeout) = true, want false")
	}
}
