// Package stdlib implements the built-in functions callable by name from
// expressions. Every function is pure: its result depends only on its
// arguments.
package stdlib

import (
	"fmt"
	"sort"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// Func is a built-in function signature.
type Func func(args []types.Value) (types.Value, error)

// Registry holds built-in functions by qualified name and implements
// eval.Functions. A Registry is read-only after NewRegistry returns, apart
// from explicit Register calls made before it is shared.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry creates a registry with all built-in functions registered.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.registerExpressionHelpers()
	r.registerMath()
	r.registerText()
	r.registerList()
	r.registerMapFuncs()
	r.registerJSON()
	r.registerBase64()
	r.registerHash()
	return r
}

// CallFunction calls the named built-in.
func (r *Registry) CallFunction(name string, args []types.Value) (types.Value, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return types.Null, types.NewKeyError(fmt.Sprintf("unknown function '%s'", name))
	}
	return fn(args)
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// requireArgs checks that the number of args is in range.
func requireArgs(name string, args []types.Value, min, max int) error {
	if len(args) >= min && len(args) <= max {
		return nil
	}
	if min == max {
		return types.NewTypeError(fmt.Sprintf("%s expects %d argument(s), got %d", name, min, len(args)))
	}
	return types.NewTypeError(fmt.Sprintf("%s expects %d-%d arguments, got %d", name, min, max, len(args)))
}

func argOf(name string, args []types.Value, i int, t types.ValueType) (types.Value, error) {
	v := args[i]
	if v.Type() != t {
		return types.Null, types.NewTypeError(
			fmt.Sprintf("%s: argument %d must be %s, got %s", name, i+1, t, v.Type()))
	}
	return v, nil
}

func stringArg(name string, args []types.Value, i int) (string, error) {
	v, err := argOf(name, args, i, types.TypeString)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

func intArg(name string, args []types.Value, i int) (int64, error) {
	v, err := argOf(name, args, i, types.TypeInt)
	if err != nil {
		return 0, err
	}
	return v.AsInt(), nil
}

func listArg(name string, args []types.Value, i int) ([]types.Value, error) {
	v, err := argOf(name, args, i, types.TypeList)
	if err != nil {
		return nil, err
	}
	return v.AsList(), nil
}

func mapArg(name string, args []types.Value, i int) (*types.OrderedMap, error) {
	v, err := argOf(name, args, i, types.TypeMap)
	if err != nil {
		return nil, err
	}
	return v.AsMap(), nil
}

func numberArg(name string, args []types.Value, i int) (float64, error) {
	f, ok := args[i].AsNumber()
	if !ok {
		return 0, types.NewTypeError(
			fmt.Sprintf("%s: argument %d must be a number, got %s", name, i+1, args[i].Type()))
	}
	return f, nil
}
