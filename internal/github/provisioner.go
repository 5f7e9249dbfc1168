// Package github ensures that the GitHub repository behind a project's
// remote URL actually exists, creating it as a private repository when it
// does not. Failures are classified for the sync engine: a malformed URL
// has no automatic recovery path, while permission and transient API
// failures are retried on later sweeps.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"
)

// DefaultAPITimeout bounds each GitHub API call.
const DefaultAPITimeout = 30 * time.Second

// Result classifies one provisioning attempt.
type Result struct {
	// Exists is true when the repository is confirmed present, either
	// found by lookup or successfully created.
	Exists bool

	// Created is true only when this attempt actually created the
	// repository, as opposed to finding it already there.
	Created bool

	// CanRetry is true when a later attempt may succeed without operator
	// action: transient API failures, and permission failures that a
	// human may resolve by granting rights or creating the repo manually.
	CanRetry bool
}

// Provisioner looks up and creates GitHub repositories for remote URLs.
type Provisioner struct {
	client *gh.Client

	mu    sync.Mutex
	login string // cached authenticated login
}

// NewProvisioner builds a Provisioner authenticated with a personal access
// token. Every API call is bounded by timeout (DefaultAPITimeout if zero).
func NewProvisioner(token string, timeout time.Duration) *Provisioner {
	if timeout == 0 {
		timeout = DefaultAPITimeout
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = timeout

	return &Provisioner{client: gh.NewClient(httpClient)}
}

// NewProvisionerWithClient builds a Provisioner around an existing client.
// Used by tests and by callers targeting a non-default API endpoint.
func NewProvisionerWithClient(client *gh.Client) *Provisioner {
	return &Provisioner{client: client}
}

// Login returns the authenticated user's GitHub login, cached after the
// first successful lookup.
func (p *Provisioner) Login(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.login != "" {
		return p.login, nil
	}

	user, _, err := p.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("github user lookup failed: %w", err)
	}

	p.login = user.GetLogin()
	return p.login, nil
}

// Ensure verifies the repository behind remoteURL exists, creating it as a
// private repository when the lookup reports not-found. The returned error
// carries detail for logging; the Result alone drives sweep policy.
func (p *Provisioner) Ensure(ctx context.Context, remoteURL string) (Result, error) {
	owner, repo, err := ParseOwnerRepo(remoteURL)
	if err != nil {
		// Nothing will fix a malformed URL short of reconfiguration.
		return Result{Exists: false, CanRetry: false}, err
	}

	_, resp, err := p.client.Repositories.Get(ctx, owner, repo)
	if err == nil {
		return Result{Exists: true, CanRetry: false}, nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		// Network failure, rate limiting, server error: a transient
		// condition cannot be told apart from a permanent one here.
		return Result{Exists: false, CanRetry: true}, fmt.Errorf("lookup of %s/%s failed: %w", owner, repo, err)
	}

	return p.create(ctx, owner, repo)
}

// create makes the repository under the user account, or under an org
// endpoint when owner differs from the authenticated login.
func (p *Provisioner) create(ctx context.Context, owner, repo string) (Result, error) {
	login, err := p.Login(ctx)
	if err != nil {
		return Result{Exists: false, CanRetry: true}, err
	}

	org := ""
	if !strings.EqualFold(owner, login) {
		org = owner
	}

	newRepo := &gh.Repository{
		Name:    gh.String(repo),
		Private: gh.Bool(true),
	}

	_, resp, err := p.client.Repositories.Create(ctx, org, newRepo)
	if err == nil {
		return Result{Exists: true, Created: true, CanRetry: false}, nil
	}

	if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized) {
		return Result{Exists: false, CanRetry: true},
			fmt.Errorf("token lacks permission to create %s/%s; grant repo creation rights or create it manually: %w", owner, repo, err)
	}

	return Result{Exists: false, CanRetry: true}, fmt.Errorf("creation of %s/%s failed: %w", owner, repo, err)
}
