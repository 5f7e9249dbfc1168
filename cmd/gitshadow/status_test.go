package main

import (
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gitshadow/gitshadow/internal/config"
	"github.com/gitshadow/gitshadow/internal/git"
)

func TestStatusDetail(t *testing.T) {
	tests := []struct {
		name string
		st   projectStatus
		want string
	}{
		{
			"in sync",
			projectStatus{State: "ok", Branch: "main"},
			"branch main, nothing to push",
		},
		{
			"ahead",
			projectStatus{State: "ok", Branch: "main", Ahead: 3},
			"branch main, 3 ahead of remote",
		},
		{
			"dirty",
			projectStatus{State: "ok", Branch: "main", Dirty: true},
			"branch main, nothing to push, uncommitted changes",
		},
		{
			"plain state",
			projectStatus{State: "detached HEAD"},
			"detached HEAD",
		},
		{
			"state with error",
			projectStatus{State: "invalid", Error: "project has no path"},
			"invalid: project has no path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusDetail(tt.st); got != tt.want {
				t.Errorf("statusDetail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusMark(t *testing.T) {
	// Output is unstyled here because tests never run on a terminal.
	if got := statusMark(projectStatus{State: "invalid"}); got != "✗" {
		t.Errorf("invalid mark = %q, want ✗", got)
	}
	if got := statusMark(projectStatus{State: "ok"}); got != "✓" {
		t.Errorf("clean mark = %q, want ✓", got)
	}
	if got := statusMark(projectStatus{State: "ok", Ahead: 2}); got != "!" {
		t.Errorf("ahead mark = %q, want !", got)
	}
	if got := statusMark(projectStatus{State: "never pushed"}); got != "!" {
		t.Errorf("never-pushed mark = %q, want !", got)
	}
}

// TestCollectStatusWithoutRepo covers the states that need no git
// history: a broken entry and a directory the daemon has not touched.
func TestCollectStatusWithoutRepo(t *testing.T) {
	ctx := context.Background()
	opts := git.Options{}

	st := collectStatus(ctx, opts, config.Project{Path: "/p", Remote: ""})
	if st.State != "invalid" {
		t.Errorf("empty remote: state = %q, want invalid", st.State)
	}
	if st.Error == "" {
		t.Error("empty remote: expected an error message")
	}

	dir := t.TempDir()
	st = collectStatus(ctx, opts, config.Project{Path: dir, Remote: "https://github.com/alice/notes.git"})
	if st.State != "not initialized" {
		t.Errorf("plain directory: state = %q, want not initialized", st.State)
	}
}

func TestRemoteLink(t *testing.T) {
	// Without a terminal the link renders as the bare remote.
	remote := "git@github.com:alice/notes.git"
	if got := remoteLink(remote); got != remote {
		t.Errorf("remoteLink(%q) = %q, want the remote unchanged", remote, got)
	}

	bad := "not-a-remote"
	if got := remoteLink(bad); got != bad {
		t.Errorf("remoteLink(%q) = %q, want input unchanged", bad, got)
	}
}

// TestStatusYAML pins the key names scripts depend on.
func TestStatusYAML(t *testing.T) {
	statuses := []projectStatus{
		{Path: "/p", Remote: "r", State: "ok", Branch: "main", Ahead: 2},
	}

	data, err := yaml.Marshal(statuses)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	out := string(data)
	for _, want := range []string{"path: /p", "remote: r", "state: ok", "branch: main", "ahead: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "error:") {
		t.Errorf("empty error should be omitted:\n%s", out)
	}
}
