package git

import "errors"

// Common errors returned by git operations.
//
// These can be checked with errors.Is() for proper error handling:
//
//	if errors.Is(err, git.ErrNotARepo) {
//	    // Handle a project directory that is not under version control
//	}
var (
	// ErrNotARepo is returned when the target directory is not inside
	// a git working tree.
	ErrNotARepo = errors.New("not a git repository")

	// ErrGitNotAvailable is returned when the git binary is not
	// installed or not in PATH.
	ErrGitNotAvailable = errors.New("git binary not available")

	// ErrTimeout is returned when a git operation exceeds its timeout.
	// The underlying subprocess has already been killed.
	ErrTimeout = errors.New("git operation timed out")

	// ErrNoRemoteBranch is returned when a remote-ref listing shows the
	// branch does not exist on the remote yet.
	ErrNoRemoteBranch = errors.New("branch not present on remote")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// for example by a protected-branch rule.
	ErrPushRejected = errors.New("push rejected by remote")
)

// IsRetryable returns true if the error is expected to clear on a later
// cycle without operator action. Timeouts are usually transient, and a
// rejected push may succeed once the remote-side condition changes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) {
		return true
	}

	if errors.Is(err, ErrPushRejected) {
		return true
	}

	return false
}

// IsFatal returns true if the error means the repository cannot be operated
// on at all and retrying the same operation is pointless.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotARepo) {
		return true
	}

	if errors.Is(err, ErrGitNotAvailable) {
		return true
	}

	return false
}
