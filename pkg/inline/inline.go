// Package inline expands splice points in an expression tree. A splice point
// is a Call to tree.UseMethod whose first argument is a constant path
// denoting a function definition; it is replaced by that function's body
// with each parameter substituted by the corresponding rewritten argument.
package inline

import (
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/resolve"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// DefaultMaxDepth bounds how many splice expansions may be nested inside one
// another before Expand gives up with a RecursionError.
const DefaultMaxDepth = 256

// Sentinels for errors.Is. Every error returned by Expand is a
// *types.ExprError carrying one of these tags.
var (
	ErrArityMismatch              = types.Sentinel(types.TagArityMismatch)
	ErrInvalidCalleeExpression    = types.Sentinel(types.TagInvalidCalleeExpression)
	ErrUnsupportedExpressionShape = types.Sentinel(types.TagUnsupportedExpressionShape)
	ErrRecursion                  = types.Sentinel(types.TagRecursionError)
)

// Engine expands splice points. It holds no per-call state and may be used
// by many goroutines at once.
type Engine struct {
	resolver *resolve.Resolver
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStatics sets the table consulted for member reads without a receiver
// in splice callees.
func WithStatics(s resolve.Statics) Option {
	return func(e *Engine) { e.resolver = resolve.New(s) }
}

// WithMaxDepth sets the nesting limit for splice expansions. n <= 0 removes
// the limit.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{resolver: resolve.New(nil), maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands root with a default engine that has no statics.
func Expand(root tree.Node) (tree.Node, error) {
	return New().Expand(root)
}

// Expand returns a new tree with every splice point in root expanded,
// transitively. root is not modified. A Lambda root yields a Lambda with the
// same parameter identities and result type. On error no tree is returned.
func (e *Engine) Expand(root tree.Node) (tree.Node, error) {
	r := &rewriter{engine: e}
	out, err := r.rewrite(root, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandLambda is Expand for function definitions.
func (e *Engine) ExpandLambda(fn *tree.Lambda) (*tree.Lambda, error) {
	out, err := e.Expand(fn)
	if err != nil {
		return nil, err
	}
	return out.(*tree.Lambda), nil
}

// scope is one layer of the substitution environment: the bindings
// introduced by a single splice expansion.
type scope struct {
	parent   *scope
	bindings map[*tree.Parameter]tree.Node
}

func (s *scope) lookup(p *tree.Parameter) (tree.Node, bool) {
	for ; s != nil; s = s.parent {
		if n, ok := s.bindings[p]; ok {
			return n, true
		}
	}
	return nil, false
}

type rewriter struct {
	engine *Engine
	depth  int
}

func (r *rewriter) rewrite(n tree.Node, env *scope) (tree.Node, error) {
	switch n := n.(type) {
	case *tree.Parameter:
		if repl, ok := env.lookup(n); ok {
			return repl, nil
		}
		return n, nil
	case *tree.Call:
		if n.IsSplice() {
			return r.splice(n, env)
		}
	}
	return tree.Rebuild(n, func(c tree.Node) (tree.Node, error) {
		return r.rewrite(c, env)
	})
}

// splice expands one splice point under env.
func (r *rewriter) splice(call *tree.Call, env *scope) (tree.Node, error) {
	if len(call.Args) == 0 {
		return nil, types.NewInvalidCalleeError("splice point has no function argument", nil)
	}
	fn, err := r.callee(call.Args[0])
	if err != nil {
		return nil, err
	}
	args := call.Args[1:]
	if len(fn.Params) != len(args) {
		return nil, types.NewArityMismatchError(len(fn.Params), len(args))
	}

	if limit := r.engine.maxDepth; limit > 0 && r.depth >= limit {
		return nil, types.NewRecursionError(limit)
	}
	r.depth++
	defer func() { r.depth-- }()

	inner := &scope{parent: env, bindings: make(map[*tree.Parameter]tree.Node, len(args))}
	for i, a := range args {
		// Arguments belong to the caller's scope, not the callee's.
		ra, err := r.rewrite(a, env)
		if err != nil {
			return nil, err
		}
		inner.bindings[fn.Params[i]] = ra
	}
	return r.rewrite(fn.Body, inner)
}

// callee resolves the function a splice point refers to.
func (r *rewriter) callee(n tree.Node) (*tree.Lambda, error) {
	v, err := r.engine.resolver.Resolve(n)
	if err != nil {
		return nil, types.NewInvalidCalleeError(
			fmt.Sprintf("splice callee %s cannot be resolved", tree.Format(n)), err)
	}
	fn, ok := tree.AsLambda(v)
	if !ok {
		return nil, types.NewInvalidCalleeError(
			fmt.Sprintf("splice callee %s resolved to %s, not a function definition", tree.Format(n), v.Type()), nil)
	}
	return fn, nil
}
