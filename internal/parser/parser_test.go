package parser

import (
	"errors"
	"testing"

	"github.com/codescope-dev/codescope/internal/model"
)

type stubParser struct {
	format model.Format
	record *model.FileRecord
	err    error
}

func (s *stubParser) Format() model.Format { return s.format }

func (s *stubParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func TestRegistryDispatchByFormat(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubParser{format: model.FormatPython, record: &model.FileRecord{}})

	if !r.CanParse("main.py") {
		t.Fatal("expected python file to be parseable")
	}
	if r.CanParse("image.png") {
		t.Fatal("unknown format must be rejected, not guessed")
	}

	record, err := r.ParseFile("image.png", []byte("data"))
	if err != nil || record != nil {
		t.Fatalf("unsupported format should skip silently, got record=%v err=%v", record, err)
	}
}

func TestParseFileDegradesOnStrategyFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubParser{format: model.FormatPython, err: errors.New("syntax error at line 2")})

	record, err := r.ParseFile("broken.py", []byte("def broken(:"))
	if err != nil {
		t.Fatalf("strategy failure must not propagate as an error: %v", err)
	}
	if record == nil || !record.Failed() {
		t.Fatal("expected degraded record with parse error marker")
	}
	if len(record.Symbols) != 0 || len(record.Dependencies) != 0 {
		t.Fatal("degraded record must have empty symbols and dependencies")
	}
	if record.ContentHash == "" {
		t.Fatal("degraded record still gets a content hash")
	}
}

func TestHashContentDeterministic(t *testing.T) {
	a := HashContent([]byte("same bytes"))
	b := HashContent([]byte("same bytes"))
	c := HashContent([]byte("other bytes"))
	if a != b {
		t.Fatal("same bytes must hash identically")
	}
	if a == c {
		t.Fatal("different bytes must hash differently")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(a))
	}
}

func TestNormalizeDependenciesDedupes(t *testing.T) {
	deps := []model.Dependency{
		{Target: "os", Kind: model.DepImport},
		{Target: "os", Kind: model.DepImport},
		{Target: "  ", Kind: model.DepImport},
		{Target: "json", Kind: model.DepImportFrom, TargetSymbol: "loads, dumps"},
	}
	out := normalizeDependencies("/abs/a.py", deps)
	if len(out) != 2 {
		t.Fatalf("expected 2 dependencies after dedup, got %d", len(out))
	}
	for _, d := range out {
		if d.SourceFile != "/abs/a.py" {
			t.Fatalf("source file not stamped: %+v", d)
		}
	}
}
