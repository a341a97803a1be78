package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatcherDefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"vendor/**",
		"!vendor/keep/file.py",
		"*.generated.json",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", isDir: false, ignored: true},
		{path: "node_modules/pkg/index.js", isDir: false, ignored: true},
		{path: "api/__pycache__/app.cpython-312.pyc", isDir: false, ignored: true},
		{path: "vendor/lib/a.py", isDir: false, ignored: true},
		{path: "vendor/keep/file.py", isDir: false, ignored: false},
		{path: "nested/schema.generated.json", isDir: false, ignored: true},
		{path: "src/main.py", isDir: false, ignored: false},
		{path: "docker-compose.yml", isDir: false, ignored: false},
	}

	for _, tc := range cases {
		got := m.ShouldIgnore(tc.path, tc.isDir)
		if got != tc.ignored {
			t.Fatalf("path %s: expected ignored=%v, got %v", tc.path, tc.ignored, got)
		}
	}
}

func TestMatcherNegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"generated/",
		"!generated/schemas/",
	})

	if !m.ShouldIgnore("generated/out/model.py", false) {
		t.Fatalf("expected generated/out/model.py to be ignored")
	}
	if m.ShouldIgnore("generated/schemas/user.json", false) {
		t.Fatalf("expected generated/schemas/user.json to be included")
	}
}

func TestMatcherGitignoreLayer(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("secrets/\n*.key\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewMatcher(nil)
	if err := m.LoadGitignore(root); err != nil {
		t.Fatalf("load gitignore: %v", err)
	}

	if !m.ShouldIgnore("secrets/prod.yaml", false) {
		t.Fatal("expected gitignore directory rule to apply")
	}
	if !m.ShouldIgnore("deploy/tls.key", false) {
		t.Fatal("expected gitignore glob rule to apply")
	}
	if m.ShouldIgnore("deploy/app.yaml", false) {
		t.Fatal("expected unlisted file to be included")
	}

	// A root without .gitignore is fine.
	if err := NewMatcher(nil).LoadGitignore(t.TempDir()); err != nil {
		t.Fatalf("missing .gitignore must not error: %v", err)
	}
}
