package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gitshadow/gitshadow/internal/git"
	"github.com/gitshadow/gitshadow/internal/github"
)

// EventKind labels an engine action observable from the outside.
type EventKind string

const (
	EventCommit         EventKind = "commit"
	EventPush           EventKind = "push"
	EventProvision      EventKind = "provision"
	EventProjectAdded   EventKind = "project_added"
	EventProjectRemoved EventKind = "project_removed"
	EventSweep          EventKind = "sweep_complete"
)

// Event is delivered to the OnEvent callback as the engine works.
type Event struct {
	Kind    EventKind
	Project string
	Detail  string
	Time    time.Time
}

// RepoProvisioner verifies, and if needed creates, the remote repository
// behind a project's push URL.
type RepoProvisioner interface {
	Ensure(ctx context.Context, remoteURL string) (github.Result, error)
}

// ProjectConfig names one directory to back up.
type ProjectConfig struct {
	// Path is the local working directory; it is the project's identity.
	Path string
	// RemoteURL is the GitHub remote the project is backed up to.
	RemoteURL string
}

// Snapshot is one consistent view of the reloadable configuration.
type Snapshot struct {
	Identity git.Identity
	Token    string
	Projects []ProjectConfig
}

// Config tunes the engine. Zero durations fall back to defaults.
type Config struct {
	Identity git.Identity
	Token    string
	Projects []ProjectConfig

	// Debounce is the quiet period after the last change before a
	// commit is attempted.
	Debounce time.Duration
	// PushInterval is how often the push sweep visits every project.
	PushInterval time.Duration
	// StabilizeDelay is how long a path must stay quiet before its
	// change reaches the debounce timer.
	StabilizeDelay time.Duration

	RemoteName   string
	RemoteBranch string

	CommandTimeout time.Duration
	NetworkTimeout time.Duration

	// Provisioner overrides the one built from Token. Tests point this
	// at a stub or a fake API server.
	Provisioner RepoProvisioner

	Logger *log.Logger

	// OnEvent, when set, receives engine events for observers such as
	// the dashboard. Called synchronously; keep it fast.
	OnEvent func(Event)
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() *Config {
	return &Config{
		Debounce:       3 * time.Second,
		PushInterval:   5 * time.Minute,
		StabilizeDelay: DefaultStabilizeDelay,
		RemoteName:     "origin",
		RemoteBranch:   "main",
		CommandTimeout: git.DefaultTimeout,
		NetworkTimeout: git.DefaultNetTimeout,
		Logger:         log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Report describes what one backup pass did to one project.
type Report struct {
	Path      string
	Committed bool
	Sync      SyncOutcome
	// Err is set when the project could not be opened at all.
	Err error
}

// Engine runs the whole backup loop: one supervisor per configured
// project, a periodic push sweep across all of them, and live
// reconciliation when the configuration changes.
type Engine struct {
	cfg     *Config
	logger  *log.Logger
	reloads chan Snapshot

	mu             sync.Mutex
	projects       map[string]*Project
	identity       git.Identity
	token          string
	provisioner    RepoProvisioner
	ownProvisioner bool
}

// NewEngine builds an engine from cfg. Nil cfg means DefaultConfig;
// zero fields inherit the defaults.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = def.PushInterval
	}
	if cfg.StabilizeDelay <= 0 {
		cfg.StabilizeDelay = def.StabilizeDelay
	}
	if cfg.RemoteName == "" {
		cfg.RemoteName = def.RemoteName
	}
	if cfg.RemoteBranch == "" {
		cfg.RemoteBranch = def.RemoteBranch
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = def.NetworkTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}

	prov := cfg.Provisioner
	own := false
	if prov == nil {
		prov = github.NewProvisioner(cfg.Token, 0)
		own = true
	}

	return &Engine{
		cfg:            cfg,
		logger:         cfg.Logger,
		reloads:        make(chan Snapshot, 1),
		projects:       make(map[string]*Project),
		identity:       cfg.Identity,
		token:          cfg.Token,
		provisioner:    prov,
		ownProvisioner: own,
	}
}

// Run applies the initial configuration and then alternates between
// periodic push sweeps and configuration reloads until ctx is
// cancelled. Watchers commit in the background the whole time.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("Starting sync engine: %d projects, push sweep every %s", len(e.cfg.Projects), e.cfg.PushInterval)

	e.reconcile(ctx, Snapshot{
		Identity: e.cfg.Identity,
		Token:    e.cfg.Token,
		Projects: e.cfg.Projects,
	})

	ticker := time.NewTicker(e.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Println("Shutdown signal received")
			e.Close()
			return nil

		case <-ticker.C:
			e.SweepOnce(ctx)

		case snap := <-e.reloads:
			e.logger.Println("Configuration changed, reconciling projects")
			e.reconcile(ctx, snap)
		}
	}
}

// Reload hands a fresh configuration snapshot to the run loop. When
// snapshots arrive faster than the loop consumes them, only the latest
// one is applied.
func (e *Engine) Reload(snap Snapshot) {
	for {
		select {
		case e.reloads <- snap:
			return
		default:
			// Displace the stale snapshot.
			select {
			case <-e.reloads:
			default:
			}
		}
	}
}

// RunOnce backs up every configured project a single time: commit, then
// provision, detect, push. No watchers are started.
func (e *Engine) RunOnce(ctx context.Context) []Report {
	reports := make([]Report, 0, len(e.cfg.Projects))
	for _, pc := range e.cfg.Projects {
		r := Report{Path: pc.Path}

		p, err := newProject(e, pc)
		if err != nil {
			e.logger.Printf("Skipping project %s: %v", pc.Path, err)
			r.Err = err
			reports = append(reports, r)
			continue
		}

		r.Path = p.path
		r.Committed = p.CommitNow(ctx)
		r.Sync = p.SyncNow(ctx)
		p.Close()
		reports = append(reports, r)
	}
	return reports
}

// SweepOnce visits every active project in path order: retry any commit
// the debounce path could not land, then provision, detect, and push.
// One project's failure never blocks the rest.
func (e *Engine) SweepOnce(ctx context.Context) []Report {
	paths := e.activePaths()
	if len(paths) == 0 {
		return nil
	}

	e.logger.Printf("Push sweep across %d projects", len(paths))

	reports := make([]Report, 0, len(paths))
	for _, path := range paths {
		e.mu.Lock()
		p := e.projects[path]
		e.mu.Unlock()
		if p == nil {
			continue
		}

		r := Report{Path: path}
		r.Committed = p.CommitNow(ctx)
		r.Sync = p.SyncNow(ctx)
		reports = append(reports, r)
	}

	e.notify(EventSweep, "", fmt.Sprintf("%d projects", len(reports)))
	return reports
}

// Close tears down every supervisor. Safe to call more than once.
func (e *Engine) Close() {
	for _, path := range e.activePaths() {
		e.mu.Lock()
		p := e.projects[path]
		delete(e.projects, path)
		e.mu.Unlock()
		if p != nil {
			p.Close()
		}
	}
	e.logger.Println("Sync engine stopped")
}

// reconcile drives the active project set toward snap. Supervisors for
// removed projects are torn down first; surviving projects keep their
// state, so an in-flight debounce is not interrupted; added projects get
// one immediate commit and push, since they may carry history from
// before they were configured. A surviving path whose remote URL changed
// is treated as removed plus added.
func (e *Engine) reconcile(ctx context.Context, snap Snapshot) {
	e.mu.Lock()
	e.identity = snap.Identity
	if snap.Token != e.token {
		e.token = snap.Token
		if e.ownProvisioner {
			e.provisioner = github.NewProvisioner(snap.Token, 0)
		}
	}
	e.mu.Unlock()

	desired := make(map[string]ProjectConfig, len(snap.Projects))
	for _, pc := range snap.Projects {
		path, err := filepath.Abs(pc.Path)
		if err != nil {
			e.logger.Printf("Skipping project %s: %v", pc.Path, err)
			continue
		}
		pc.Path = path
		desired[path] = pc
	}

	// Removals run to completion before anything starts, so a path that
	// moved to a different remote is fully torn down before its
	// replacement supervisor appears.
	for _, path := range e.activePaths() {
		e.mu.Lock()
		p := e.projects[path]
		e.mu.Unlock()

		pc, keep := desired[path]
		if keep && pc.RemoteURL == p.remoteURL {
			continue
		}

		p.Close()
		e.mu.Lock()
		delete(e.projects, path)
		e.mu.Unlock()
		e.logger.Printf("Removed project %s", path)
		e.notify(EventProjectRemoved, path, "")
	}

	paths := make([]string, 0, len(desired))
	for path := range desired {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		e.mu.Lock()
		_, exists := e.projects[path]
		e.mu.Unlock()
		if exists {
			continue
		}
		e.addProject(ctx, desired[path])
	}
}

// addProject starts a supervisor for one directory and gives it an
// immediate backup pass. A directory that cannot be opened is skipped
// with a log line; the next reload retries it.
func (e *Engine) addProject(ctx context.Context, pc ProjectConfig) {
	p, err := newProject(e, pc)
	if err != nil {
		e.logger.Printf("Skipping project %s: %v", pc.Path, err)
		return
	}
	if err := p.Watch(); err != nil {
		e.logger.Printf("Skipping project %s: cannot watch: %v", pc.Path, err)
		p.Close()
		return
	}

	e.mu.Lock()
	e.projects[p.path] = p
	e.mu.Unlock()

	e.logger.Printf("Watching project %s", p.path)
	e.notify(EventProjectAdded, p.path, "")

	// A directory configured for the first time may already hold
	// uncommitted work or unpushed history.
	p.CommitNow(ctx)
	p.SyncNow(ctx)
}

// activePaths returns the watched project paths in sorted order.
func (e *Engine) activePaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	paths := make([]string, 0, len(e.projects))
	for path := range e.projects {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (e *Engine) identitySnapshot() git.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

func (e *Engine) provisionerSnapshot() RepoProvisioner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provisioner
}

func (e *Engine) gitOptions() git.Options {
	return git.Options{
		RemoteName: e.cfg.RemoteName,
		Timeout:    e.cfg.CommandTimeout,
		NetTimeout: e.cfg.NetworkTimeout,
	}
}

func (e *Engine) notify(kind EventKind, project, detail string) {
	if e.cfg.OnEvent == nil {
		return
	}
	e.cfg.OnEvent(Event{
		Kind:    kind,
		Project: project,
		Detail:  detail,
		Time:    time.Now(),
	})
}
