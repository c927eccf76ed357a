package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/eval"
	"github.com/lemonberrylabs/splice/pkg/inline"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Result is the outcome of a run.
type Result struct {
	Value types.Value

	// Expanded is main with every splice point inlined. It is nil when
	// main recurses through splice points and was evaluated directly.
	Expanded *tree.Lambda
}

// Engine runs the entry point of a compiled library.
type Engine struct {
	lib *Library
	ev  *eval.Evaluator
}

// NewEngine creates an engine for lib. funcs resolves built-in calls and
// may be nil.
func NewEngine(lib *Library, funcs eval.Functions) *Engine {
	opts := []eval.Option{eval.WithStatics(lib)}
	if funcs != nil {
		opts = append(opts, eval.WithFunctions(funcs))
	}
	if lib.maxDepth > 0 {
		opts = append(opts, eval.WithMaxDepth(lib.maxDepth))
	}
	return &Engine{lib: lib, ev: eval.New(opts...)}
}

// Evaluator returns the evaluator runs use.
func (e *Engine) Evaluator() *eval.Evaluator { return e.ev }

// Run expands main and evaluates it with args.
//
// When main has a single parameter the whole argument is bound to it. With
// several parameters args must be a map and each parameter is read from it
// by name.
func (e *Engine) Run(ctx context.Context, args types.Value) (*Result, error) {
	main := e.lib.Main()
	if main == nil {
		return nil, types.NewKeyError("library has no main function")
	}
	bound, err := bindArgs(main, args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewCancelledError(err)
	}

	// A library whose splice points recurse cannot be fully expanded; it
	// still evaluates, with splices applied on demand.
	f, err := e.lib.inliner.ExpandLambda(main)
	if errors.Is(err, inline.ErrRecursion) {
		v, err := e.ev.Invoke(ctx, tree.FuncValue(main), bound)
		if err != nil {
			return nil, err
		}
		return &Result{Value: v}, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := e.ev.Invoke(ctx, tree.FuncValue(f), bound)
	if err != nil {
		return nil, err
	}
	return &Result{Value: v, Expanded: f}, nil
}

// Call invokes the library function name with positional arguments.
func (e *Engine) Call(ctx context.Context, name string, args ...types.Value) (types.Value, error) {
	fn, ok := e.lib.Function(name)
	if !ok {
		return types.Null, types.NewKeyError(fmt.Sprintf("function '%s' not found", name))
	}
	return e.ev.Invoke(ctx, tree.FuncValue(fn), args)
}

func bindArgs(main *tree.Lambda, args types.Value) ([]types.Value, error) {
	switch len(main.Params) {
	case 0:
		return nil, nil
	case 1:
		return []types.Value{args}, nil
	}
	if args.Type() != types.TypeMap {
		return nil, types.NewTypeError(
			fmt.Sprintf("main takes %d parameters and expects a map argument, got %s", len(main.Params), args.Type()))
	}
	m := args.AsMap()
	bound := make([]types.Value, len(main.Params))
	for i, p := range main.Params {
		v, ok := m.Get(p.Name)
		if !ok {
			return nil, types.NewKeyError(fmt.Sprintf("missing argument '%s'", p.Name))
		}
		bound[i] = v
	}
	return bound, nil
}
