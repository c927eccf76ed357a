package eval

import (
	"context"

	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Func is a compiled function: a definition with every splice point
// expanded, bound to the evaluator that compiled it. A Func is immutable and
// may be called from many goroutines.
type Func struct {
	ev     *Evaluator
	lambda *tree.Lambda
}

// Compile expands fn and returns it as a callable Func.
func (ev *Evaluator) Compile(fn *tree.Lambda) (*Func, error) {
	expanded, err := ev.inliner.ExpandLambda(fn)
	if err != nil {
		return nil, err
	}
	return &Func{ev: ev, lambda: expanded}, nil
}

// Use compiles fn and invokes it with args straight away.
func (ev *Evaluator) Use(ctx context.Context, fn *tree.Lambda, args ...types.Value) (types.Value, error) {
	f, err := ev.Compile(fn)
	if err != nil {
		return types.Null, err
	}
	return f.Call(ctx, args...)
}

// Call invokes f. The number of arguments must match the parameter count.
func (f *Func) Call(ctx context.Context, args ...types.Value) (types.Value, error) {
	return f.ev.machine(ctx).apply(f.lambda, nil, args)
}

// Lambda returns the expanded definition.
func (f *Func) Lambda() *tree.Lambda { return f.lambda }

// Arity returns the number of parameters.
func (f *Func) Arity() int { return len(f.lambda.Params) }

// Value wraps f as a function value.
func (f *Func) Value() types.Value { return types.NewFunction(f) }

func (f *Func) String() string { return f.lambda.String() }
