package judge

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitImports(t *testing.T) {
	src := `package main

import "fmt"
import str "strings"
import (
	"math"
	// comment
	"sort"
)

func f() {}`

	specs, body, err := splitImports(src)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []importSpec{{path: "fmt"}, {name: "str", path: "strings"}, {path: "math"}, {path: "sort"}}
	if diff := cmp.Diff(want, specs, cmp.AllowUnexported(importSpec{})); diff != "" {
		t.Fatalf("imports mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(body, "import") || strings.Contains(body, "package") {
		t.Fatalf("expected imports stripped from body, got %q", body)
	}
	if !strings.Contains(body, "func f() {}") {
		t.Fatalf("expected declarations kept, got %q", body)
	}
}

func TestSplitImportsRejectsMalformed(t *testing.T) {
	if _, _, err := splitImports("import (\n\t\"fmt\"\n"); err == nil {
		t.Fatalf("expected unterminated block error")
	}
	if _, _, err := splitImports("import fmt"); err == nil {
		t.Fatalf("expected unquoted path error")
	}
}

func TestBuildProgramMergesImports(t *testing.T) {
	program, imports, err := buildProgram("import \"strings\"\nfunc f() string { return strings.ToUpper(\"a\") }", "import \"strings\"\nassert(f() == \"A\")")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	paths := make([]string, 0, len(imports))
	for _, spec := range imports {
		paths = append(paths, spec.path)
	}
	if diff := cmp.Diff([]string{HelperPackage, "strings"}, paths); diff != "" {
		t.Fatalf("imports mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(program, "package main") {
		t.Fatalf("expected main package, got %q", program)
	}
	if strings.Index(program, "func f()") > strings.Index(program, "assert(f()") {
		t.Fatalf("expected submission before judge script:\n%s", program)
	}
}

func TestCheckProgram(t *testing.T) {
	ok, _, err := buildProgram(`func f() int { return 1 }`, `assert(f() == 1, "f")`)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := checkProgram(ok); err != nil {
		t.Fatalf("expected clean program, got %v", err)
	}

	spawning, _, _ := buildProgram(`func f() int { go println("x"); return 1 }`, `assert(f() == 1, "f")`)
	if err := checkProgram(spawning); err != errGoroutine {
		t.Fatalf("expected errGoroutine, got %v", err)
	}

	if err := checkProgram("package main\n\nfunc f( {"); err == nil {
		t.Fatalf("expected parse error")
	}
}
