package model

import (
	"testing"
)

func TestDetectFormatFilenameBeforeExtension(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"Dockerfile", FormatDockerfile},
		{"src/Dockerfile", FormatDockerfile},
		{"docker-compose.yml", FormatCompose},
		{"package.json", FormatNpm},
		{"config.json", FormatJSON},
		{"Makefile", FormatMakefile},
		{"rules.mk", FormatMakefile},
		{"app/main.py", FormatPython},
		{"index.jsx", FormatJavaScript},
		{"schema.sql", FormatSQL},
		{"pyproject.toml", FormatTOML},
		{"deploy.yaml", FormatYAML},
		{"styles/site.css", FormatCSS},
		{".env", FormatEnv},
		{"settings.properties", FormatProperties},
		{"binary.bin", FormatUnknown},
		{"no_extension", FormatUnknown},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNormalizePathIsStable(t *testing.T) {
	a := NormalizePath("./some/dir/../dir/file.py")
	b := NormalizePath("some/dir/file.py")
	if a != b {
		t.Fatalf("expected equivalent paths to normalize identically: %q vs %q", a, b)
	}
}

func TestFileRecordFailed(t *testing.T) {
	r := &FileRecord{}
	if r.Failed() {
		t.Fatal("clean record should not report failure")
	}
	r.ParseError = "syntax error at line 3"
	if !r.Failed() {
		t.Fatal("record with parse error should report failure")
	}
}
