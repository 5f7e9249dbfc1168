package git

import (
	"context"
	"fmt"
	"os"
)

// InitRepo turns an existing plain directory into a git repository and
// returns a Repo for it. A directory that is already inside a working
// tree is opened as-is, so calling this on every project at startup is
// safe.
func InitRepo(path string, opts Options) (*Repo, error) {
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotARepo, path)
	}

	r, err := Open(path, opts)
	if err == nil {
		return r, nil
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if err := ExecQuiet(context.Background(), timeout, path, "init"); err != nil {
		return nil, fmt.Errorf("git init failed: %w", err)
	}

	return Open(path, opts)
}
