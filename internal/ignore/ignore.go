// Package ignore classifies paths that should never trigger a backup:
// build output, dependency trees, editor droppings, and the .git
// directory itself (without which every commit would re-trigger the
// watcher). A default ruleset covers the common cases; a per-project
// rules file extends it.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// RulesFileName is the optional per-project file with additional rules,
// one pattern per line. Blank lines and lines starting with # are skipped.
const RulesFileName = ".gitshadowignore"

// DefaultRules are active for every project. Rules without a slash match
// any single path segment; rules with a slash match the project-relative
// path. Glob syntax follows path.Match.
var DefaultRules = []string{
	".git",
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
	"dist",
	"build",
	"target",
	".idea",
	".DS_Store",
	"*.swp",
	"*.swx",
	"*.tmp",
	"*~",
}

// Matcher classifies absolute paths under one project root.
type Matcher struct {
	root  string
	rules []string
}

// NewMatcher builds a matcher for the project rooted at root, combining
// DefaultRules with the project's rules file when one exists.
func NewMatcher(root string) *Matcher {
	rules := make([]string, 0, len(DefaultRules))
	rules = append(rules, DefaultRules...)
	rules = append(rules, loadRulesFile(filepath.Join(root, RulesFileName))...)

	return &Matcher{
		root:  root,
		rules: rules,
	}
}

// loadRulesFile reads patterns from path. A missing or unreadable file
// yields no rules; the defaults still apply.
func loadRulesFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var rules []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules
}

// Rules returns the active ruleset, defaults first.
func (m *Matcher) Rules() []string {
	return m.rules
}

// Ignored classifies an absolute path. Paths outside the project root are
// always ignored; they are not ours to commit.
func (m *Matcher) Ignored(absPath string) bool {
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}

	rel = filepath.ToSlash(rel)
	segments := strings.Split(rel, "/")

	for _, rule := range m.rules {
		if ruleMatches(rule, rel, segments) {
			return true
		}
	}
	return false
}

func ruleMatches(rule, rel string, segments []string) bool {
	if strings.Contains(rule, "/") {
		matched, err := path.Match(strings.TrimSuffix(rule, "/"), rel)
		return err == nil && matched
	}

	// A segment rule matches if any component of the path matches, so
	// "node_modules" covers everything beneath it.
	for _, seg := range segments {
		if matched, err := path.Match(rule, seg); err == nil && matched {
			return true
		}
	}
	return false
}
