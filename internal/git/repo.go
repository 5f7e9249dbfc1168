// Package git wraps the git command line for the operations gitshadow
// needs: working-tree status, stage-everything commits, remote-ref
// divergence checks, and force pushes. Every subprocess runs with an
// explicit timeout and bounded output capture; nothing in this package
// shells out without a deadline.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Identity is the author recorded on commits.
type Identity struct {
	Name  string
	Email string
}

// Options tunes how a Repo runs git. Zero values fall back to defaults.
type Options struct {
	// RemoteName is the remote all sync operations target. Defaults to
	// "origin".
	RemoteName string

	// Timeout bounds local-only subprocesses. Defaults to DefaultTimeout.
	Timeout time.Duration

	// NetTimeout bounds subprocesses that contact the remote. Defaults to
	// DefaultNetTimeout.
	NetTimeout time.Duration
}

// Repo runs git operations for a single working directory.
type Repo struct {
	path       string
	remoteName string
	timeout    time.Duration
	netTimeout time.Duration
}

// Open validates that path is inside a git working tree and returns a Repo
// for it. Returns ErrNotARepo if the directory is not under version control.
func Open(path string, opts Options) (*Repo, error) {
	r := &Repo{
		path:       path,
		remoteName: opts.RemoteName,
		timeout:    opts.Timeout,
		netTimeout: opts.NetTimeout,
	}
	if r.remoteName == "" {
		r.remoteName = "origin"
	}
	if r.timeout == 0 {
		r.timeout = DefaultTimeout
	}
	if r.netTimeout == 0 {
		r.netTimeout = DefaultNetTimeout
	}

	out, err := Exec(context.Background(), r.timeout, path, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		if errors.Is(err, ErrGitNotAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrNotARepo, path)
	}
	if TrimOutput(out) != "true" {
		return nil, fmt.Errorf("%w: %s", ErrNotARepo, path)
	}

	return r, nil
}

// Path returns the working directory this Repo operates on.
func (r *Repo) Path() string {
	return r.path
}

// RemoteName returns the remote all sync operations target.
func (r *Repo) RemoteName() string {
	return r.remoteName
}

// HasChanges returns true if the working tree has uncommitted changes,
// including untracked files.
func (r *Repo) HasChanges(ctx context.Context) (bool, error) {
	out, err := Exec(ctx, r.timeout, r.path, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return len(TrimOutput(out)) > 0, nil
}

// StageAll stages every change in the working tree, including deletions
// and untracked files.
func (r *Repo) StageAll(ctx context.Context) error {
	if err := ExecQuiet(ctx, r.timeout, r.path, "add", "-A"); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// SetIdentity writes the commit author into the repository's local
// configuration. Safe to call repeatedly.
func (r *Repo) SetIdentity(ctx context.Context, id Identity) error {
	if err := ExecQuiet(ctx, r.timeout, r.path, "config", "user.name", id.Name); err != nil {
		return fmt.Errorf("git config user.name failed: %w", err)
	}
	if err := ExecQuiet(ctx, r.timeout, r.path, "config", "user.email", id.Email); err != nil {
		return fmt.Errorf("git config user.email failed: %w", err)
	}
	return nil
}

// Commit stages all changes and records a commit authored by id, with the
// current UTC time embedded in the message. Returns false when the working
// tree was clean or staging came up empty; true only when a commit object
// was actually created.
func (r *Repo) Commit(ctx context.Context, id Identity) (bool, error) {
	dirty, err := r.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !dirty {
		return false, nil
	}

	if err := r.StageAll(ctx); err != nil {
		return false, err
	}

	// Staging can legitimately yield nothing even after a dirty status,
	// so re-check before committing rather than creating an empty commit.
	dirty, err = r.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !dirty {
		return false, nil
	}

	if err := r.SetIdentity(ctx, id); err != nil {
		return false, err
	}

	msg := "gitshadow backup: " + time.Now().UTC().Format(time.RFC3339)
	if err := ExecQuiet(ctx, r.timeout, r.path, "commit", "-m", msg); err != nil {
		return false, fmt.Errorf("git commit failed: %w", err)
	}

	return true, nil
}

// CurrentBranch returns the checked-out branch name.
// Returns empty string with no error in detached HEAD state.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := Exec(ctx, r.timeout, r.path, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "not a symbolic ref") {
			return "", nil // Detached HEAD
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return TrimOutput(out), nil
}

// HasCommits returns true once the repository has at least one commit.
// A freshly initialized repository has an unborn HEAD that cannot be
// pushed or compared.
func (r *Repo) HasCommits(ctx context.Context) bool {
	err := ExecQuiet(ctx, r.timeout, r.path, "rev-parse", "--verify", "HEAD")
	return err == nil
}

// EnsureRemote points the configured remote name at url, adding the remote
// if it does not exist yet and rewriting its URL if it differs.
func (r *Repo) EnsureRemote(ctx context.Context, url string) error {
	out, err := Exec(ctx, r.timeout, r.path, "remote", "get-url", r.remoteName)
	if err != nil {
		// No such remote yet.
		if err := ExecQuiet(ctx, r.timeout, r.path, "remote", "add", r.remoteName, url); err != nil {
			return fmt.Errorf("git remote add failed: %w", err)
		}
		return nil
	}

	if TrimOutput(out) == url {
		return nil
	}
	if err := ExecQuiet(ctx, r.timeout, r.path, "remote", "set-url", r.remoteName, url); err != nil {
		return fmt.Errorf("git remote set-url failed: %w", err)
	}
	return nil
}
