package formats

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/codescope-dev/codescope/internal/model"
)

func TestJavaScriptParseConcurrent(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&src, "function render_%d(props) { return %d; }\n", i, i)
	}
	content := []byte(src.String())

	p := NewJavaScriptParser()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := p.Parse("big.js", content)
			if err != nil {
				errs <- err
				return
			}
			if len(record.Symbols) != 1000 {
				errs <- fmt.Errorf("expected 1000 symbols, got %d", len(record.Symbols))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent parse failed: %v", err)
	}
}

func TestJavaScriptClassesAndImports(t *testing.T) {
	p := NewJavaScriptParser()
	record, err := p.Parse("store.js", []byte(`import { connect } from "./db"

class Store extends Base {
  save(item) { return item }
}

const MAX_ITEMS = 100
const load = async () => {}
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	class := findSymbol(record.Symbols, "Store")
	if class == nil || class.Kind != model.KindClass {
		t.Fatalf("expected class Store, got %#v", class)
	}
	save := findSymbol(record.Symbols, "save")
	if save == nil || save.Kind != model.KindMethod || save.Parent != "Store" {
		t.Fatalf("expected method save under Store, got %#v", save)
	}
	if c := findSymbol(record.Symbols, "MAX_ITEMS"); c == nil || c.Kind != model.KindConstant {
		t.Fatalf("expected constant MAX_ITEMS, got %#v", c)
	}
	if fn := findSymbol(record.Symbols, "load"); fn == nil || fn.Kind != model.KindFunction {
		t.Fatalf("expected arrow function as function, got %#v", fn)
	}

	if dep := findDependency(record.Dependencies, "./db"); dep == nil || dep.Kind != model.DepImport {
		t.Fatalf("expected import dependency on ./db, got %#v", dep)
	}
	if dep := findDependency(record.Dependencies, "Base"); dep == nil || dep.Kind != model.DepInheritance {
		t.Fatalf("expected inheritance dependency on Base, got %#v", dep)
	}
}

func TestTypeScriptInterfaces(t *testing.T) {
	p := NewTypeScriptParser()
	record, err := p.Parse("api.ts", []byte(`interface Handler {
  serve(req: string): string
}

function ping(): string { return "pong" }
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if iface := findSymbol(record.Symbols, "Handler"); iface == nil || iface.Kind != model.KindInterface {
		t.Fatalf("expected interface Handler, got %#v", iface)
	}
	if fn := findSymbol(record.Symbols, "ping"); fn == nil || fn.Kind != model.KindFunction {
		t.Fatalf("expected function ping, got %#v", fn)
	}
}
