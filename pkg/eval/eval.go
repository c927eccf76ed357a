// Package eval executes expression trees. It treats splice points as
// ordinary calls with substitution semantics, so evaluating a tree and
// evaluating its expansion give the same result.
package eval

import (
	"context"
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/inline"
	"github.com/lemonberrylabs/splice/pkg/resolve"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// DefaultMaxDepth bounds nested function invocations.
const DefaultMaxDepth = 1024

// Functions resolves named calls that are neither splice points nor
// functions in the static table.
type Functions interface {
	CallFunction(name string, args []types.Value) (types.Value, error)
}

// Evaluator evaluates trees against a static table and a function
// registry. It is safe for concurrent use.
type Evaluator struct {
	statics  resolve.Statics
	funcs    Functions
	maxDepth int

	resolver *resolve.Resolver
	inliner  *inline.Engine
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStatics sets the table used for member reads without a receiver, for
// splice callees and for calls by name.
func WithStatics(s resolve.Statics) Option {
	return func(ev *Evaluator) { ev.statics = s }
}

// WithFunctions sets the registry for built-in calls.
func WithFunctions(f Functions) Option {
	return func(ev *Evaluator) { ev.funcs = f }
}

// WithMaxDepth bounds nested invocations and, for Compile, nested splice
// expansions. n <= 0 removes the limit.
func WithMaxDepth(n int) Option {
	return func(ev *Evaluator) { ev.maxDepth = n }
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(ev)
	}
	ev.resolver = resolve.New(ev.statics)
	ev.inliner = inline.New(inline.WithStatics(ev.statics), inline.WithMaxDepth(ev.maxDepth))
	return ev
}

// Inliner returns the expansion engine configured with the same statics and
// depth limit as ev.
func (ev *Evaluator) Inliner() *inline.Engine {
	return ev.inliner
}

// Closure is the value of a function literal evaluated in an environment.
type Closure struct {
	Lambda *tree.Lambda
	env    *Env
}

func (c *Closure) String() string { return c.Lambda.String() }

// Evaluate evaluates n with the parameters bound in env.
func (ev *Evaluator) Evaluate(ctx context.Context, n tree.Node, env *Env) (types.Value, error) {
	return ev.machine(ctx).eval(n, env)
}

// Invoke calls a function value: a function definition, a closure or a
// compiled Func. Arguments are checked against the declared parameter
// types, and the result against the declared result type.
func (ev *Evaluator) Invoke(ctx context.Context, fn types.Value, args []types.Value) (types.Value, error) {
	return ev.machine(ctx).invoke(fn, args)
}

// Eval evaluates n with a default evaluator and no bindings.
func Eval(n tree.Node) (types.Value, error) {
	return New().Evaluate(context.Background(), n, nil)
}

func (ev *Evaluator) machine(ctx context.Context) *machine {
	if ctx == nil {
		ctx = context.Background()
	}
	return &machine{ev: ev, ctx: ctx}
}

// machine carries the state of one evaluation.
type machine struct {
	ev    *Evaluator
	ctx   context.Context
	depth int
}

func (m *machine) eval(n tree.Node, env *Env) (types.Value, error) {
	switch n := n.(type) {
	case *tree.Constant:
		return n.Value, nil
	case *tree.Parameter:
		return m.param(n, env)
	case *tree.Member:
		return m.member(n, env)
	case *tree.Call:
		if n.IsSplice() {
			return m.splice(n, env)
		}
		return m.call(n, env)
	case *tree.Lambda:
		return types.NewFunction(&Closure{Lambda: n, env: env}), nil
	case *tree.Binary:
		return m.binary(n, env)
	case *tree.Unary:
		return m.unary(n, env)
	case *tree.Index:
		return m.index(n, env)
	case *tree.List:
		elements := make([]types.Value, len(n.Elements))
		for i, elem := range n.Elements {
			val, err := m.eval(elem, env)
			if err != nil {
				return types.Null, err
			}
			elements[i] = val
		}
		return types.NewList(elements), nil
	case *tree.Map:
		return m.mapLiteral(n, env)
	case *tree.Conditional:
		test, err := m.eval(n.Test, env)
		if err != nil {
			return types.Null, err
		}
		if test.Truthy() {
			return m.eval(n.Then, env)
		}
		return m.eval(n.Else, env)
	case nil:
		return types.Null, types.NewValueError("cannot evaluate an empty expression")
	default:
		return types.Null, types.NewMalformedTreeError(fmt.Sprintf("unsupported node type %T", n))
	}
}

func (m *machine) param(p *tree.Parameter, env *Env) (types.Value, error) {
	s, ok := env.lookup(p)
	if !ok {
		return types.Null, types.NewKeyError(fmt.Sprintf("parameter '%s' is not bound", p.Name))
	}
	if !s.ready {
		s.value, s.err = m.eval(s.node, s.env)
		s.ready = true
		s.node, s.env = nil, nil
	}
	return s.value, s.err
}

func (m *machine) member(n *tree.Member, env *Env) (types.Value, error) {
	if n.Object == nil {
		return m.static(n.Name)
	}
	obj, err := m.eval(n.Object, env)
	if err != nil {
		return types.Null, err
	}
	return types.LookupMember(obj, n.Name)
}

func (m *machine) static(name string) (types.Value, error) {
	if m.ev.statics != nil {
		if v, ok := m.ev.statics.LookupStatic(name); ok {
			return v, nil
		}
	}
	return types.Null, types.NewKeyError(fmt.Sprintf("name '%s' is not defined", name))
}

// call evaluates a named call. Functions in the static table take
// precedence over the registry.
func (m *machine) call(n *tree.Call, env *Env) (types.Value, error) {
	args := make([]types.Value, len(n.Args))
	for i, arg := range n.Args {
		val, err := m.eval(arg, env)
		if err != nil {
			return types.Null, err
		}
		args[i] = val
	}

	name := n.Method.Name
	if m.ev.statics != nil {
		if fn, ok := m.ev.statics.LookupStatic(name); ok && fn.Type() == types.TypeFunction {
			return m.invoke(fn, args)
		}
	}
	if m.ev.funcs == nil {
		return types.Null, types.NewKeyError(fmt.Sprintf("unknown function '%s'", name))
	}
	return m.ev.funcs.CallFunction(name, args)
}

// splice evaluates a splice point the way its expansion would run: the
// callee is resolved as a constant path and its parameters denote the
// argument expressions, evaluated in the caller's environment on first use.
func (m *machine) splice(n *tree.Call, env *Env) (types.Value, error) {
	if len(n.Args) == 0 {
		return types.Null, types.NewInvalidCalleeError("splice point has no function argument", nil)
	}
	v, err := m.ev.resolver.Resolve(n.Args[0])
	if err != nil {
		return types.Null, types.NewInvalidCalleeError(
			fmt.Sprintf("splice callee %s cannot be resolved", tree.Format(n.Args[0])), err)
	}
	fn, ok := tree.AsLambda(v)
	if !ok {
		return types.Null, types.NewInvalidCalleeError(
			fmt.Sprintf("splice callee %s resolved to %s, not a function definition", tree.Format(n.Args[0]), v.Type()), nil)
	}
	args := n.Args[1:]
	if len(fn.Params) != len(args) {
		return types.Null, types.NewArityMismatchError(len(fn.Params), len(args))
	}
	if err := m.enter(); err != nil {
		return types.Null, err
	}
	defer m.leave()

	inner := &Env{parent: env, slots: make(map[*tree.Parameter]*slot, len(args))}
	for i, a := range args {
		inner.slots[fn.Params[i]] = &slot{node: a, env: env}
	}
	return m.eval(fn.Body, inner)
}

func (m *machine) invoke(fn types.Value, args []types.Value) (types.Value, error) {
	if fn.Type() != types.TypeFunction {
		return types.Null, types.NewTypeError(fmt.Sprintf("%s value is not callable", fn.Type()))
	}
	var (
		l   *tree.Lambda
		env *Env
	)
	switch f := fn.AsFunction().(type) {
	case *tree.Lambda:
		l = f
	case *Closure:
		l, env = f.Lambda, f.env
	case *Func:
		l = f.lambda
	default:
		return types.Null, types.NewTypeError(fmt.Sprintf("value of kind %T is not callable", f))
	}
	return m.apply(l, env, args)
}

func (m *machine) apply(l *tree.Lambda, env *Env, args []types.Value) (types.Value, error) {
	if len(l.Params) != len(args) {
		return types.Null, types.NewArityMismatchError(len(l.Params), len(args))
	}
	for i, p := range l.Params {
		if !args[i].Conforms(p.Type) {
			return types.Null, types.NewTypeError(
				fmt.Sprintf("%s: parameter '%s' expects %s, got %s", functionName(l), p.Name, p.Type, args[i].Type()))
		}
	}
	if err := m.enter(); err != nil {
		return types.Null, err
	}
	defer m.leave()

	result, err := m.eval(l.Body, env.BindAll(l.Params, args))
	if err != nil {
		return types.Null, err
	}
	if !result.Conforms(l.Result) {
		return types.Null, types.NewTypeError(
			fmt.Sprintf("%s: declared result %s, got %s", functionName(l), l.Result, result.Type()))
	}
	return result, nil
}

func (m *machine) enter() error {
	if err := m.ctx.Err(); err != nil {
		return types.NewCancelledError(err)
	}
	if limit := m.ev.maxDepth; limit > 0 && m.depth >= limit {
		return types.NewRecursionError(limit)
	}
	m.depth++
	return nil
}

func (m *machine) leave() { m.depth-- }

func functionName(l *tree.Lambda) string {
	if l.Name != "" {
		return l.Name
	}
	return "function"
}
