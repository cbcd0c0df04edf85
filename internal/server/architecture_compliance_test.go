package server

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
)

type registeredRoute struct {
	method  string
	path    string
	handler string
}

type boundaryCalls struct {
	ingest    []string
	retrieval []string
	expiry    []string
	records   []string
	blobs     []string
}

// Handlers reach storage only through the ingest, retrieval and expiry
// services. Reading aggregate stats is the one direct store call allowed.
func TestHandlersUseServiceBoundary(t *testing.T) {
	routes := parseRegisteredRoutes(t)
	handlers := parseServerHandlers(t)
	if len(routes) == 0 {
		t.Fatal("no routes discovered")
	}

	allowedRecordCalls := []string{"Stats"}
	for _, route := range routes {
		fn, ok := handlers[route.handler]
		if !ok {
			t.Fatalf("handler %q for %s %s not found", route.handler, route.method, route.path)
		}
		calls := inspectBoundaryCalls(fn)
		if len(calls.blobs) > 0 {
			t.Fatalf("handler %q (%s %s) calls s.blobs directly: %v", route.handler, route.method, route.path, calls.blobs)
		}
		for _, call := range calls.records {
			if !slices.Contains(allowedRecordCalls, call) {
				t.Fatalf("handler %q (%s %s) calls s.records.%s directly", route.handler, route.method, route.path, call)
			}
		}
	}
}

func TestUploadRouteUsesIngest(t *testing.T) {
	handlers := parseServerHandlers(t)
	for _, route := range parseRegisteredRoutes(t) {
		if route.path != "/upload" {
			continue
		}
		calls := inspectBoundaryCalls(handlers[route.handler])
		if !slices.Contains(calls.ingest, "Submit") {
			t.Fatalf("handler %q does not submit through the ingest service", route.handler)
		}
		return
	}
	t.Fatal("upload route not registered")
}

func parseRegisteredRoutes(t *testing.T) []registeredRoute {
	t.Helper()

	routesPath := filepath.Join(serverPackageDir(t), "routes.go")
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, routesPath, nil, 0)
	if err != nil {
		t.Fatalf("parse routes.go: %v", err)
	}

	routes := make([]registeredRoute, 0)
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 2 {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !isRouteMethod(sel.Sel.Name) {
			return true
		}

		patternLit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || patternLit.Kind != token.STRING {
			return true
		}
		pattern, err := strconv.Unquote(patternLit.Value)
		if err != nil {
			t.Fatalf("unquote route pattern %q: %v", patternLit.Value, err)
		}

		handlerSel, ok := call.Args[1].(*ast.SelectorExpr)
		if !ok {
			return true
		}
		recv, ok := handlerSel.X.(*ast.Ident)
		if !ok || recv.Name != "s" {
			return true
		}

		routes = append(routes, registeredRoute{
			method:  strings.ToUpper(sel.Sel.Name),
			path:    pattern,
			handler: handlerSel.Sel.Name,
		})
		return true
	})

	return routes
}

func parseServerHandlers(t *testing.T) map[string]*ast.FuncDecl {
	t.Helper()

	files, err := filepath.Glob(filepath.Join(serverPackageDir(t), "handlers*.go"))
	if err != nil {
		t.Fatalf("glob handler files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no handler files found")
	}

	out := make(map[string]*ast.FuncDecl)
	fset := token.NewFileSet()
	for _, filePath := range files {
		if strings.HasSuffix(filePath, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", filePath, err)
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || fn.Name == nil || !isServerReceiver(fn.Recv) {
				continue
			}
			out[fn.Name.Name] = fn
		}
	}
	return out
}

// inspectBoundaryCalls collects s.<field>.<method> calls in fn and in the
// server helpers it calls.
func inspectBoundaryCalls(fn *ast.FuncDecl) boundaryCalls {
	calls := boundaryCalls{}
	if fn == nil {
		return calls
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		selector, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		chain, ok := selector.X.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		recv, ok := chain.X.(*ast.Ident)
		if !ok || recv.Name != "s" {
			return true
		}

		switch chain.Sel.Name {
		case "ingest":
			calls.ingest = append(calls.ingest, selector.Sel.Name)
		case "retrieval":
			calls.retrieval = append(calls.retrieval, selector.Sel.Name)
		case "expiry":
			calls.expiry = append(calls.expiry, selector.Sel.Name)
		case "records":
			calls.records = append(calls.records, selector.Sel.Name)
		case "blobs":
			calls.blobs = append(calls.blobs, selector.Sel.Name)
		}
		return true
	})
	calls.ingest = uniqueSorted(calls.ingest)
	calls.retrieval = uniqueSorted(calls.retrieval)
	calls.expiry = uniqueSorted(calls.expiry)
	calls.records = uniqueSorted(calls.records)
	calls.blobs = uniqueSorted(calls.blobs)
	return calls
}

func isRouteMethod(name string) bool {
	switch name {
	case "Get", "Post", "Put", "Patch", "Delete":
		return true
	default:
		return false
	}
}

func isServerReceiver(recv *ast.FieldList) bool {
	if recv == nil || len(recv.List) != 1 {
		return false
	}
	star, ok := recv.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	ident, ok := star.X.(*ast.Ident)
	return ok && ident.Name == "Server"
}

func serverPackageDir(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(file)
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for value := range set {
		out = append(out, value)
	}
	slices.Sort(out)
	return out
}
