package formats

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/codescope-dev/codescope/internal/model"
)

func TestPythonImportsOneDependencyPerModule(t *testing.T) {
	p := NewPythonParser()
	record, err := p.Parse("app.py", []byte(`import os
from json import loads, dumps
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(record.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d (%#v)", len(record.Dependencies), record.Dependencies)
	}

	osDep := findDependency(record.Dependencies, "os")
	if osDep == nil || osDep.Kind != model.DepImport {
		t.Fatalf("expected import dependency on os, got %#v", osDep)
	}

	jsonDep := findDependency(record.Dependencies, "json")
	if jsonDep == nil || jsonDep.Kind != model.DepImportFrom {
		t.Fatalf("expected import_from dependency on json, got %#v", jsonDep)
	}
	if jsonDep.TargetSymbol != "loads, dumps" {
		t.Fatalf("expected joined names on target symbol, got %q", jsonDep.TargetSymbol)
	}

	expectedImports := []string{"os", "json.loads", "json.dumps"}
	if len(record.RawImports) != len(expectedImports) {
		t.Fatalf("expected %d raw imports, got %#v", len(expectedImports), record.RawImports)
	}
	for i, want := range expectedImports {
		if record.RawImports[i] != want {
			t.Fatalf("expected raw import[%d]=%q, got %q", i, want, record.RawImports[i])
		}
	}
}

func TestPythonMethodRequiresClassNesting(t *testing.T) {
	p := NewPythonParser()
	record, err := p.Parse("svc.py", []byte(`def helper():
    pass

class Service:
    def run(self):
        pass
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	helper := findSymbol(record.Symbols, "helper")
	if helper == nil || helper.Kind != model.KindFunction {
		t.Fatalf("expected top-level function, got %#v", helper)
	}

	run := findSymbol(record.Symbols, "run")
	if run == nil || run.Kind != model.KindMethod {
		t.Fatalf("expected method for class-nested def, got %#v", run)
	}
	if run.Parent != "Service" {
		t.Fatalf("expected parent Service, got %q", run.Parent)
	}
}

func TestPythonInheritanceSkipsObject(t *testing.T) {
	p := NewPythonParser()
	record, err := p.Parse("models.py", []byte(`class Base(object):
    pass

class User(Base):
    pass
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(record.Dependencies) != 1 {
		t.Fatalf("expected one inheritance dependency, got %#v", record.Dependencies)
	}
	dep := record.Dependencies[0]
	if dep.Kind != model.DepInheritance || dep.Target != "Base" || dep.SourceSymbol != "User" {
		t.Fatalf("unexpected inheritance dependency: %#v", dep)
	}
}

func TestPythonModuleConstants(t *testing.T) {
	p := NewPythonParser()
	record, err := p.Parse("settings.py", []byte(`MAX_RETRIES = 5
timeout = 30
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	constant := findSymbol(record.Symbols, "MAX_RETRIES")
	if constant == nil || constant.Kind != model.KindConstant {
		t.Fatalf("expected constant for upper-case assignment, got %#v", constant)
	}
	variable := findSymbol(record.Symbols, "timeout")
	if variable == nil || variable.Kind != model.KindVariable {
		t.Fatalf("expected variable for lower-case assignment, got %#v", variable)
	}
}

// One strategy instance serves all indexing workers, so Parse has to be
// safe to call from many goroutines at once.
func TestPythonParseConcurrent(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&src, "def handler_%d(request):\n    return %d\n", i, i)
	}
	content := []byte(src.String())

	p := NewPythonParser()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := p.Parse("big.py", content)
			if err != nil {
				errs <- err
				return
			}
			if len(record.Symbols) != 2000 {
				errs <- fmt.Errorf("expected 2000 symbols, got %d", len(record.Symbols))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent parse failed: %v", err)
	}
}

func TestPythonSyntaxErrorReturnsError(t *testing.T) {
	p := NewPythonParser()
	if _, err := p.Parse("broken.py", []byte("def broken(:\n")); err == nil {
		t.Fatal("expected an error for unparseable source")
	}
}

func findSymbol(symbols []model.Symbol, name string) *model.Symbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

func findDependency(deps []model.Dependency, target string) *model.Dependency {
	for i := range deps {
		if deps[i].Target == target {
			return &deps[i]
		}
	}
	return nil
}
