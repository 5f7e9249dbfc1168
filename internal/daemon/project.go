package daemon

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/gitshadow/gitshadow/internal/git"
	"github.com/gitshadow/gitshadow/internal/ignore"
)

// Project supervises one working directory. It owns the directory's
// watcher subscription, ignore rules, and debounce timer; it turns
// bursts of file changes into single backup commits and carries out the
// provision, detect, push pass during sweeps.
type Project struct {
	path         string
	remoteURL    string
	remoteBranch string
	debounce     time.Duration

	repo    *git.Repo
	matcher *ignore.Matcher
	engine  *Engine
	logger  *log.Logger

	watcher *Watcher
	wg      sync.WaitGroup

	// mu guards the debounce timer and the closed flag.
	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	// opMu serializes mutating git operations on this project, so a
	// debounce-triggered commit and a sweep-triggered push never
	// interleave on the same working directory.
	opMu sync.Mutex
}

// SyncOutcome describes what one provision, detect, push pass did.
type SyncOutcome struct {
	// RepoExists is true when the remote repository was confirmed or
	// created this pass.
	RepoExists bool
	// RepoCreated is true when this pass created the remote repository.
	RepoCreated bool
	// CanRetry is true when a failed provisioning attempt is worth
	// repeating next sweep.
	CanRetry bool

	// Branch is the local branch considered for pushing; empty on
	// detached HEAD or when provisioning did not confirm a repository.
	Branch string
	// BranchPushed and TagsPushed report what was actually sent.
	BranchPushed bool
	TagsPushed   bool
	// InSync is true when the detector found nothing to push.
	InSync bool

	// Err holds the last failure of the pass. The pass keeps going
	// where it can; Err never aborts the sweep.
	Err error
}

// newProject opens (initializing if necessary) the working directory,
// points its remote at the configured URL, and loads the ignore rules.
// The returned project is not yet watching; call Watch.
func newProject(e *Engine, pc ProjectConfig) (*Project, error) {
	path, err := filepath.Abs(pc.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %w", pc.Path, err)
	}

	repo, err := git.InitRepo(path, e.gitOptions())
	if err != nil {
		return nil, err
	}

	if err := repo.EnsureRemote(context.Background(), pc.RemoteURL); err != nil {
		return nil, err
	}

	return &Project{
		path:         path,
		remoteURL:    pc.RemoteURL,
		remoteBranch: e.cfg.RemoteBranch,
		debounce:     e.cfg.Debounce,
		repo:         repo,
		matcher:      ignore.NewMatcher(path),
		engine:       e,
		logger:       e.logger,
	}, nil
}

// Path returns the project's absolute working directory.
func (p *Project) Path() string {
	return p.path
}

// Watch subscribes the project to file change notifications. Every
// qualifying event re-arms the debounce timer; the timer firing commits.
func (p *Project) Watch() error {
	w, err := NewWatcher(p.path, p.matcher, p.engine.cfg.StabilizeDelay)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	p.watcher = w
	p.wg.Add(1)
	go p.loop()
	return nil
}

func (p *Project) loop() {
	defer p.wg.Done()

	for {
		select {
		case ev, ok := <-p.watcher.Events():
			if !ok {
				return
			}
			p.handleEvent(ev)

		case err, ok := <-p.watcher.Errors():
			if !ok {
				return
			}
			p.logger.Printf("Watcher error in %s: %v", p.path, err)
		}
	}
}

// handleEvent restarts the debounce window. Each qualifying event resets
// the quiet period to its full length, so a burst of edits produces
// exactly one commit attempt, after the burst ends.
func (p *Project) handleEvent(ev FileEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.logger.Printf("File event: %s %s", ev.Op, ev.Path)

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, p.debounceFired)
}

func (p *Project) debounceFired() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()

	p.CommitNow(context.Background())
}

func (p *Project) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CommitNow stages and commits everything outstanding in the working
// tree. Returns true only when a commit was created. Failures are
// logged and swallowed; the next change or sweep retries.
func (p *Project) CommitNow(ctx context.Context) bool {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.isClosed() {
		return false
	}

	committed, err := p.repo.Commit(ctx, p.engine.identitySnapshot())
	if err != nil {
		p.logger.Printf("Commit failed in %s: %v", p.path, err)
		return false
	}
	if committed {
		p.logger.Printf("Backup commit created in %s", p.path)
		p.engine.notify(EventCommit, p.path, "backup commit created")
	}
	return committed
}

// SyncNow runs one provision, detect, push pass. The push is skipped
// entirely when the remote already matches, and every failure is logged
// and left for the next sweep rather than propagated.
func (p *Project) SyncNow(ctx context.Context) SyncOutcome {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	var out SyncOutcome
	if p.isClosed() {
		return out
	}

	res, err := p.engine.provisionerSnapshot().Ensure(ctx, p.remoteURL)
	out.RepoExists = res.Exists
	out.RepoCreated = res.Created
	out.CanRetry = res.CanRetry
	if err != nil {
		out.Err = err
		if res.CanRetry {
			p.logger.Printf("Provisioning for %s failed: %v (will retry next sweep)", p.path, err)
		} else {
			p.logger.Printf("Provisioning for %s failed: %v (not retryable; check the remote URL)", p.path, err)
		}
	}
	if res.Created {
		p.logger.Printf("Created private repository for %s", p.path)
		p.engine.notify(EventProvision, p.path, "created private repository "+p.remoteURL)
	}
	if !res.Exists {
		return out
	}

	branch, err := p.repo.CurrentBranch(ctx)
	if err != nil {
		p.logger.Printf("Cannot determine branch in %s: %v", p.path, err)
		out.Err = err
		return out
	}
	if branch == "" {
		p.logger.Printf("Skipping push for %s: detached HEAD", p.path)
		return out
	}
	out.Branch = branch

	if !p.repo.HasCommits(ctx) {
		// Unborn HEAD; nothing to compare or push yet.
		return out
	}

	needBranch, err := p.repo.BranchNeedsSync(ctx, branch)
	if err != nil {
		p.logger.Printf("Divergence check for %s: %v (assuming push needed)", p.path, err)
	}
	needTags, err := p.repo.TagsNeedSync(ctx)
	if err != nil {
		p.logger.Printf("Tag check for %s: %v (assuming push needed)", p.path, err)
	}

	if !needBranch && !needTags {
		out.InSync = true
		return out
	}

	if needBranch {
		if err := p.repo.PushBranch(ctx, branch, p.remoteBranch); err != nil {
			p.logger.Printf("Push failed for %s: %v", p.path, err)
			out.Err = err
		} else {
			out.BranchPushed = true
			p.logger.Printf("Pushed %s:%s for %s", branch, p.remoteBranch, p.path)
			p.engine.notify(EventPush, p.path, fmt.Sprintf("pushed %s to %s", branch, p.remoteBranch))
		}
	}

	if needTags {
		if err := p.repo.PushTags(ctx); err != nil {
			p.logger.Printf("Tag push failed for %s: %v", p.path, err)
			out.Err = err
		} else {
			out.TagsPushed = true
			p.engine.notify(EventPush, p.path, "pushed tags")
		}
	}

	return out
}

// Close tears the project down deterministically: the debounce timer is
// cancelled and can no longer fire a commit, the watcher subscription is
// released, and any in-flight operation finishes before Close returns.
func (p *Project) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if p.watcher != nil {
		if err := p.watcher.Stop(); err != nil {
			p.logger.Printf("Error stopping watcher for %s: %v", p.path, err)
		}
		p.wg.Wait()
	}

	// An operation that started before the close finishes; nothing new
	// starts once the closed flag is up.
	p.opMu.Lock()
	p.logger.Printf("Stopped watching %s", p.path)
	p.opMu.Unlock()
}
