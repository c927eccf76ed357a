// Package runtime compiles library documents into expression trees and runs
// their entry points.
package runtime

import (
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/ast"
	"github.com/lemonberrylabs/splice/pkg/expr"
	"github.com/lemonberrylabs/splice/pkg/inline"
	"github.com/lemonberrylabs/splice/pkg/parser"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Library is a compiled library document. Its functions and constants form
// the static scope that splice callees and free identifiers resolve
// against. A Library is immutable once compiled.
type Library struct {
	names     []string // declaration order, constants first
	constants map[string]types.Value
	functions map[string]*tree.Lambda
	order     []*tree.Lambda
	main      *tree.Lambda

	maxDepth int
	inliner  *inline.Engine
}

// Option configures compilation.
type Option func(*Library)

// WithMaxDepth bounds nested splice expansion and, in engines built on the
// library, nested invocation. n <= 0 keeps the package defaults.
func WithMaxDepth(n int) Option {
	return func(l *Library) { l.maxDepth = n }
}

// Compile parses every function body in src into a function definition.
// Body errors are reported as *parser.ParseError naming the function.
func Compile(src *ast.Library, opts ...Option) (*Library, error) {
	lib := &Library{
		constants: make(map[string]types.Value),
		functions: make(map[string]*tree.Lambda),
	}
	for _, opt := range opts {
		opt(lib)
	}
	depth := inline.DefaultMaxDepth
	if lib.maxDepth > 0 {
		depth = lib.maxDepth
	}
	lib.inliner = inline.New(inline.WithStatics(lib), inline.WithMaxDepth(depth))

	for _, c := range src.Constants {
		lib.constants[c.Name] = types.ValueFromJSON(c.Value)
		lib.names = append(lib.names, c.Name)
	}
	for _, f := range src.Functions {
		fn, err := compileFunction(f)
		if err != nil {
			return nil, err
		}
		lib.functions[f.Name] = fn
		lib.order = append(lib.order, fn)
		lib.names = append(lib.names, f.Name)
	}
	if src.Main != nil {
		fn, err := compileFunction(src.Main)
		if err != nil {
			return nil, err
		}
		lib.main = fn
	}
	return lib, nil
}

func compileFunction(f *ast.Function) (*tree.Lambda, error) {
	loc := fmt.Sprintf("body of function '%s'", f.Name)
	params := make([]*tree.Parameter, len(f.Params))
	for i, p := range f.Params {
		typ, err := types.ParseValueType(p.Type)
		if err != nil {
			return nil, &parser.ParseError{Message: err.Error(), Location: loc}
		}
		params[i] = tree.Param(p.Name, typ)
	}
	result, err := types.ParseValueType(f.Returns)
	if err != nil {
		return nil, &parser.ParseError{Message: err.Error(), Location: loc}
	}
	fn, err := expr.ParseFunction(f.Name, params, f.Body)
	if err != nil {
		return nil, &parser.ParseError{Message: err.Error(), Location: loc}
	}
	fn.Result = result
	return fn, nil
}

// LookupStatic implements resolve.Statics. Functions resolve to function
// values, constants to their values. Main is not part of the static scope.
func (l *Library) LookupStatic(name string) (types.Value, bool) {
	if fn, ok := l.functions[name]; ok {
		return tree.FuncValue(fn), true
	}
	v, ok := l.constants[name]
	return v, ok
}

// Main returns the entry point, or nil if the library has none.
func (l *Library) Main() *tree.Lambda { return l.main }

// Function returns the function declared as name. "main" finds the entry
// point.
func (l *Library) Function(name string) (*tree.Lambda, bool) {
	if l.main != nil && name == "main" {
		return l.main, true
	}
	fn, ok := l.functions[name]
	return fn, ok
}

// Functions returns the declared functions in source order, main last.
func (l *Library) Functions() []*tree.Lambda {
	out := make([]*tree.Lambda, 0, len(l.order)+1)
	out = append(out, l.order...)
	if l.main != nil {
		out = append(out, l.main)
	}
	return out
}

// Constant returns the value of the constant declared as name.
func (l *Library) Constant(name string) (types.Value, bool) {
	v, ok := l.constants[name]
	return v, ok
}

// ConstantNames returns the constant names in source order.
func (l *Library) ConstantNames() []string {
	var out []string
	for _, name := range l.names {
		if _, ok := l.constants[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Inliner returns the expansion engine bound to the library's static scope.
func (l *Library) Inliner() *inline.Engine { return l.inliner }

// ExpandFunction returns name with every splice point expanded.
func (l *Library) ExpandFunction(name string) (*tree.Lambda, error) {
	fn, ok := l.Function(name)
	if !ok {
		return nil, types.NewKeyError(fmt.Sprintf("function '%s' not found", name))
	}
	return l.inliner.ExpandLambda(fn)
}

// Expand parses source as an expression in the library's static scope and
// expands it.
func (l *Library) Expand(source string) (tree.Node, error) {
	n, err := expr.ParseExpression(source)
	if err != nil {
		return nil, err
	}
	return l.inliner.Expand(n)
}
