package git

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The sync-state detector decides whether a push is actually necessary.
// Its failure bias is deliberate: every lookup that cannot complete
// resolves toward "needs sync", because a redundant force push costs
// bandwidth while a skipped one is silent data loss. Methods that apply
// this policy return the conservative boolean together with the error,
// so callers can always act on the boolean and log the error.

// RemoteBranchHash returns the commit hash the remote reports for branch,
// using a remote-ref listing rather than a fetch (no objects transfer,
// no local refs move). Returns ErrNoRemoteBranch when the remote does not
// have the branch yet.
func (r *Repo) RemoteBranchHash(ctx context.Context, branch string) (string, error) {
	out, err := Exec(ctx, r.netTimeout, r.path, "ls-remote", "--heads", r.remoteName, "refs/heads/"+branch)
	if err != nil {
		return "", fmt.Errorf("git ls-remote failed: %w", err)
	}

	line := TrimOutput(out)
	if line == "" {
		return "", ErrNoRemoteBranch
	}

	// Output format: "<hash>\trefs/heads/<branch>"
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected ls-remote output: %q", line)
	}
	return fields[0], nil
}

// LocalHash resolves ref to a commit hash.
func (r *Repo) LocalHash(ctx context.Context, ref string) (string, error) {
	out, err := Exec(ctx, r.timeout, r.path, "rev-parse", "--verify", ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve ref %s: %w", ref, err)
	}
	return TrimOutput(out), nil
}

// AheadCount returns the number of commits reachable from local but not
// from remote (the remote..local count).
func (r *Repo) AheadCount(ctx context.Context, local, remote string) (int, error) {
	out, err := Exec(ctx, r.timeout, r.path, "rev-list", "--count", remote+".."+local)
	if err != nil {
		return 0, fmt.Errorf("failed to count ahead commits: %w", err)
	}

	count, err := strconv.Atoi(TrimOutput(out))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output: %w", err)
	}
	return count, nil
}

// BranchNeedsSync reports whether branch must be pushed. Policy, in order:
// a missing remote branch needs sync; equal local and remote hashes need
// none; otherwise sync is needed iff local has commits the remote lacks.
// On lookup failure the result is true together with the error.
func (r *Repo) BranchNeedsSync(ctx context.Context, branch string) (bool, error) {
	remoteHash, err := r.RemoteBranchHash(ctx, branch)
	if errors.Is(err, ErrNoRemoteBranch) {
		return true, nil
	}
	if err != nil {
		return true, err
	}

	localHash, err := r.LocalHash(ctx, branch)
	if err != nil {
		return true, err
	}
	if localHash == remoteHash {
		return false, nil
	}

	// The remote hash can be unknown to the local object store when the
	// remote moved on its own; rev-list fails then, which errs toward
	// pushing.
	ahead, err := r.AheadCount(ctx, branch, remoteHash)
	if err != nil {
		return true, err
	}
	return ahead > 0, nil
}

// LocalTags returns all local tag names.
func (r *Repo) LocalTags(ctx context.Context) ([]string, error) {
	out, err := Exec(ctx, r.timeout, r.path, "tag")
	if err != nil {
		return nil, fmt.Errorf("git tag failed: %w", err)
	}
	return ParseLines(out), nil
}

// RemoteTags returns the set of tag names present on the remote.
func (r *Repo) RemoteTags(ctx context.Context) (map[string]bool, error) {
	out, err := Exec(ctx, r.netTimeout, r.path, "ls-remote", "--tags", r.remoteName)
	if err != nil {
		return nil, fmt.Errorf("git ls-remote --tags failed: %w", err)
	}

	tags := make(map[string]bool)
	for _, line := range ParseLines(out) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "refs/tags/")
		// Annotated tags list twice, the second time peeled as "name^{}".
		name = strings.TrimSuffix(name, "^{}")
		tags[name] = true
	}
	return tags, nil
}

// TagsNeedSync reports whether at least one local tag is absent from the
// remote. No local tags means no sync needed. A failed remote listing
// resolves to true together with the error.
func (r *Repo) TagsNeedSync(ctx context.Context) (bool, error) {
	local, err := r.LocalTags(ctx)
	if err != nil {
		return true, err
	}
	if len(local) == 0 {
		return false, nil
	}

	remote, err := r.RemoteTags(ctx)
	if err != nil {
		return true, err
	}

	for _, tag := range local {
		if !remote[tag] {
			return true, nil
		}
	}
	return false, nil
}

// PushBranch force-pushes branch to the fixed target name on the remote.
// Local history is authoritative: divergent remote history on the target
// ref is overwritten, never merged.
func (r *Repo) PushBranch(ctx context.Context, branch, target string) error {
	refspec := branch + ":" + target
	err := ExecQuiet(ctx, r.netTimeout, r.path, "push", "--force", r.remoteName, refspec)
	if err != nil {
		if strings.Contains(err.Error(), "rejected") || strings.Contains(err.Error(), "non-fast-forward") {
			return ErrPushRejected
		}
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

// PushTags force-pushes every local tag to the remote.
func (r *Repo) PushTags(ctx context.Context) error {
	err := ExecQuiet(ctx, r.netTimeout, r.path, "push", "--force", "--tags", r.remoteName)
	if err != nil {
		if strings.Contains(err.Error(), "rejected") {
			return ErrPushRejected
		}
		return fmt.Errorf("git push --tags failed: %w", err)
	}
	return nil
}
