package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultExcludes cover VCS metadata, build artifacts, caches and editor
// litter. They apply to every walk unless a caller's pattern set negates
// them.
var defaultExcludes = []string{
	"__pycache__/",
	".git/",
	".svn/",
	"node_modules/",
	".vscode/",
	".idea/",
	".vs/",
	"venv/",
	"env/",
	"build/",
	"dist/",
	"target/",
	"bin/",
	"obj/",
	".next/",
	".pytest_cache/",
	".mypy_cache/",
	".tox/",
	"htmlcov/",
	".nyc_output/",
	"coverage/",
	"logs/",
	"tmp/",
	"temp/",
	"*.pyc",
	"*.pyo",
	"*.pyd",
	"*.log",
	"*.tmp",
	"*.swp",
	"*.swo",
	"*.bak",
	".DS_Store",
	".coverage",
}

type rule struct {
	pattern string
	negated bool
	dirOnly bool
}

// Matcher excludes paths from directory walks. It combines the built-in
// exclude list, caller-supplied glob patterns and, when loaded, the
// project's .gitignore. Rules apply in order with "last rule wins".
type Matcher struct {
	rules []rule
	git   *gitignore.GitIgnore
}

// NewMatcher builds a matcher from the default excludes plus userPatterns.
// Patterns use doublestar globs; a leading "!" negates, a trailing "/"
// restricts the rule to directories.
func NewMatcher(userPatterns []string) *Matcher {
	all := make([]string, 0, len(defaultExcludes)+len(userPatterns))
	all = append(all, defaultExcludes...)
	all = append(all, userPatterns...)

	rules := make([]rule, 0, len(all))
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			rules = append(rules, parsed)
		}
	}
	return &Matcher{rules: rules}
}

// LoadGitignore layers the .gitignore found at root on top of the glob
// rules. A missing file is not an error.
func (m *Matcher) LoadGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return err
	}
	m.git = gi
	return nil
}

// ShouldIgnore returns true when relPath should be excluded from a walk.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" || relPath == "." {
		return false
	}

	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	if !ignored && m.git != nil && m.git.MatchesPath(relPath) {
		ignored = true
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	parsed := rule{}
	if strings.HasPrefix(line, "!") {
		parsed.negated = true
		line = strings.TrimPrefix(line, "!")
	}
	if strings.HasSuffix(line, "/") {
		parsed.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	parsed.pattern = line
	return parsed, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly {
		// A directory rule matches the directory itself and everything
		// beneath it.
		if strings.Contains(r.pattern, "/") {
			parts := strings.Split(relPath, "/")
			for i := range parts {
				if globMatch(r.pattern, strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
			return false
		}
		for _, segment := range strings.Split(relPath, "/") {
			if globMatch(r.pattern, segment) {
				return true
			}
		}
		return false
	}

	if strings.Contains(r.pattern, "/") {
		return globMatch(r.pattern, relPath)
	}

	// Bare patterns match any path segment, same as gitignore.
	for _, segment := range strings.Split(relPath, "/") {
		if globMatch(r.pattern, segment) {
			return true
		}
	}
	return false
}

func globMatch(pattern, value string) bool {
	ok, err := doublestar.Match(pattern, value)
	return err == nil && ok
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
