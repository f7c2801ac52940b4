package judge

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
)

// importSpec is one parsed import line.
type importSpec struct {
	name string // optional alias
	path string
}

func (s importSpec) String() string {
	if s.name != "" {
		return s.name + " " + strconv.Quote(s.path)
	}
	return strconv.Quote(s.path)
}

// splitImports removes package clauses and import declarations from src and
// returns them separately. Only the line-oriented forms gofmt produces are
// recognised; anything else is left in the body for the interpreter to reject.
func splitImports(src string) ([]importSpec, string, error) {
	var (
		specs   []importSpec
		body    []string
		inBlock bool
	)
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock:
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
				continue
			}
			if trimmed == "" || strings.HasPrefix(trimmed, "//") {
				continue
			}
			spec, err := parseImportSpec(trimmed)
			if err != nil {
				return nil, "", err
			}
			specs = append(specs, spec)
		case strings.HasPrefix(trimmed, "package "):
			continue
		case trimmed == "import (" || strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case strings.HasPrefix(trimmed, "import "):
			spec, err := parseImportSpec(strings.TrimSpace(strings.TrimPrefix(trimmed, "import ")))
			if err != nil {
				return nil, "", err
			}
			specs = append(specs, spec)
		default:
			body = append(body, line)
		}
	}
	if inBlock {
		return nil, "", fmt.Errorf("unterminated import block")
	}
	return specs, strings.Join(body, "\n"), nil
}

func parseImportSpec(raw string) (importSpec, error) {
	if i := strings.Index(raw, "//"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	fields := strings.Fields(raw)
	var spec importSpec
	switch len(fields) {
	case 1:
		spec.path = fields[0]
	case 2:
		spec.name, spec.path = fields[0], fields[1]
	default:
		return importSpec{}, fmt.Errorf("malformed import %q", raw)
	}
	path, err := strconv.Unquote(spec.path)
	if err != nil {
		return importSpec{}, fmt.Errorf("malformed import %q", raw)
	}
	spec.path = path
	return spec, nil
}

// buildProgram concatenates the submission and the judge script into a single
// main package. The submission contributes top-level declarations; the script
// runs as the body of a package-level initializer so it executes after every
// declaration it depends on.
func buildProgram(source, script string) (string, []importSpec, error) {
	srcImports, srcBody, err := splitImports(source)
	if err != nil {
		return "", nil, fmt.Errorf("submission: %w", err)
	}
	scriptImports, scriptBody, err := splitImports(script)
	if err != nil {
		return "", nil, fmt.Errorf("judge script: %w", err)
	}

	seen := map[string]bool{}
	var imports []importSpec
	for _, spec := range append(append([]importSpec{{path: HelperPackage}}, srcImports...), scriptImports...) {
		key := spec.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		imports = append(imports, spec)
	}
	sort.SliceStable(imports, func(i, j int) bool { return imports[i].path < imports[j].path })

	var b strings.Builder
	b.WriteString("package main\n\nimport (\n")
	for _, spec := range imports {
		b.WriteString("\t" + spec.String() + "\n")
	}
	b.WriteString(")\n\n")
	b.WriteString("func assert(ok bool, msg ...interface{}) { judge.Assert(ok, msg...) }\n\n")
	b.WriteString(srcBody)
	b.WriteString("\n\nvar judgeCompleted = func() bool {\n")
	b.WriteString(scriptBody)
	b.WriteString("\n\treturn true\n}()\n")
	return b.String(), imports, nil
}

var errGoroutine = errors.New("goroutines are not allowed")

// checkProgram parses the assembled program and rejects constructs the
// interpreter cannot contain. A panic inside a goroutine started by the
// submission escapes the evaluator's recover and takes the process down.
func checkProgram(program string) error {
	file, err := parser.ParseFile(token.NewFileSet(), "submission.go", program, parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	var found error
	ast.Inspect(file, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if _, ok := n.(*ast.GoStmt); ok {
			found = errGoroutine
			return false
		}
		return true
	})
	return found
}
