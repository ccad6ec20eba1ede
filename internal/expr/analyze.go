package expr

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/parser"
)

// predeclared identifiers are resolved by CUE itself, never by the model.
var predeclared = map[string]bool{
	"_": true, "true": true, "false": true, "null": true,
	"len": true, "close": true, "and": true, "or": true,
	"div": true, "mod": true, "quo": true, "rem": true,
	"bool": true, "int": true, "float": true, "number": true,
	"string": true, "bytes": true, "rune": true,
	"int8": true, "int16": true, "int32": true, "int64": true, "int128": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uint128": true,
	"float32": true, "float64": true,
}

// Analysis lists the identifiers an expression reads from its scope.
type Analysis struct {
	// Free are the identifiers read anywhere, in first-use order.
	Free []string
	// Branch are the identifiers read by if-clause guards.
	Branch []string
}

// Analyze parses src and collects its free identifiers. attrs is the set of
// names the component defines; a selector base that is not an attribute is
// treated as a builtin package reference (e.g. math.Sqrt).
func Analyze(src string, attrs map[string]bool) (Analysis, ast.Expr, error) {
	x, err := parser.ParseExpr("transition", src)
	if err != nil {
		return Analysis{}, nil, fmt.Errorf("parse %q: %w", src, err)
	}

	w := &walker{attrs: attrs}
	w.expr(x, false)
	return Analysis{Free: w.free, Branch: w.branch}, x, nil
}

// walker collects free identifiers under CUE's lexical scoping: a for or
// let clause binds its names for the clauses after it and the value of its
// comprehension; a struct literal binds its field labels and lets for all
// of its elements.
type walker struct {
	attrs  map[string]bool
	scopes []map[string]bool
	free   []string
	branch []string
}

func (w *walker) push(names map[string]bool) {
	w.scopes = append(w.scopes, names)
}

func (w *walker) pop() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *walker) bound(name string) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i][name] {
			return true
		}
	}
	return false
}

func (w *walker) bind(name string) {
	w.scopes[len(w.scopes)-1][name] = true
}

// expr walks x; guard marks reads made by an if-clause condition.
func (w *walker) expr(x ast.Node, guard bool) {
	if x == nil {
		return
	}
	ast.Walk(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Ident:
			w.use(n.Name, guard)
			return false
		case *ast.SelectorExpr:
			if base, ok := n.X.(*ast.Ident); ok {
				if w.bound(base.Name) || w.attrs[base.Name] {
					w.use(base.Name, guard)
				}
				return false
			}
			w.expr(n.X, guard)
			return false
		case *ast.StructLit:
			w.structLit(n, guard)
			return false
		case *ast.Comprehension:
			w.comprehension(n.Clauses, n.Value, guard)
			return false
		}
		return true
	}, noop)
}

func (w *walker) structLit(s *ast.StructLit, guard bool) {
	w.push(make(map[string]bool))
	defer w.pop()
	for _, d := range s.Elts {
		switch d := d.(type) {
		case *ast.Field:
			if id, ok := d.Label.(*ast.Ident); ok {
				w.bind(id.Name)
			}
		case *ast.LetClause:
			if d.Ident != nil {
				w.bind(d.Ident.Name)
			}
		}
	}
	for _, d := range s.Elts {
		switch d := d.(type) {
		case *ast.Field:
			switch d.Label.(type) {
			case *ast.Ident, *ast.BasicLit:
			default:
				w.expr(d.Label, guard)
			}
			w.expr(d.Value, guard)
		case *ast.LetClause:
			w.expr(d.Expr, guard)
		case *ast.EmbedDecl:
			w.expr(d.Expr, guard)
		case *ast.Comprehension:
			w.comprehension(d.Clauses, d.Value, guard)
		}
	}
}

// comprehension walks clauses in order; each for or let binds only what
// follows it.
func (w *walker) comprehension(clauses []ast.Clause, value ast.Expr, guard bool) {
	w.push(make(map[string]bool))
	defer w.pop()
	for _, c := range clauses {
		switch c := c.(type) {
		case *ast.ForClause:
			w.expr(c.Source, guard)
			if c.Key != nil {
				w.bind(c.Key.Name)
			}
			if c.Value != nil {
				w.bind(c.Value.Name)
			}
		case *ast.LetClause:
			w.expr(c.Expr, guard)
			if c.Ident != nil {
				w.bind(c.Ident.Name)
			}
		case *ast.IfClause:
			w.expr(c.Condition, true)
		}
	}
	w.expr(value, guard)
}

func noop(ast.Node) {}

func (w *walker) use(name string, guard bool) {
	if w.bound(name) || predeclared[name] {
		return
	}
	if !slices.Contains(w.free, name) {
		w.free = append(w.free, name)
	}
	if guard && !slices.Contains(w.branch, name) {
		w.branch = append(w.branch, name)
	}
}
