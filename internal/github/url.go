package github

import (
	"fmt"
	"strings"
)

// ParseOwnerRepo extracts the owner and repository name from a GitHub
// remote URL. Supported forms, each with or without a .git suffix:
//
//	https://github.com/owner/repo
//	git@github.com:owner/repo
//	ssh://git@github.com/owner/repo
//
// Remotes on hosts other than github.com are rejected; repositories
// are only ever provisioned there.
func ParseOwnerRepo(remoteURL string) (owner, repo string, err error) {
	raw := strings.TrimSpace(remoteURL)

	var host, rest string
	switch {
	case strings.HasPrefix(raw, "git@"):
		// SSH: git@github.com:owner/repo.git
		parts := strings.SplitN(strings.TrimPrefix(raw, "git@"), ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return "", "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		host, rest = parts[0], parts[1]

	case strings.HasPrefix(raw, "ssh://"):
		// SSH with scheme: ssh://git@github.com/owner/repo.git
		trimmed := strings.TrimPrefix(raw, "ssh://")
		i := strings.Index(trimmed, "/")
		if i < 0 {
			return "", "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		host, rest = trimmed[:i], trimmed[i+1:]
		if at := strings.Index(host, "@"); at >= 0 {
			host = host[at+1:]
		}

	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		// Web: https://github.com/owner/repo.git
		trimmed := strings.TrimPrefix(raw, "https://")
		trimmed = strings.TrimPrefix(trimmed, "http://")
		i := strings.Index(trimmed, "/")
		if i < 0 {
			return "", "", fmt.Errorf("cannot parse remote URL: %s", remoteURL)
		}
		host, rest = trimmed[:i], trimmed[i+1:]

	default:
		return "", "", fmt.Errorf("unsupported remote URL: %s", remoteURL)
	}

	if !strings.EqualFold(host, "github.com") {
		return "", "", fmt.Errorf("remote %s is not on github.com", remoteURL)
	}

	rest = strings.TrimSuffix(rest, "/")
	rest = strings.TrimSuffix(rest, ".git")

	segments := strings.Split(rest, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
	}
	return segments[0], segments[1], nil
}
