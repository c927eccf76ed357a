package stdlib

import (
	"fmt"
	"math"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerMath registers math.* functions.
func (r *Registry) registerMath() {
	r.Register("math.abs", mathAbs)
	r.Register("math.floor", mathFloor)
	r.Register("math.max", func(args []types.Value) (types.Value, error) {
		return pick("math.max", args, func(a, b float64) bool { return a >= b })
	})
	r.Register("math.min", func(args []types.Value) (types.Value, error) {
		return pick("math.min", args, func(a, b float64) bool { return a <= b })
	})
	r.Register("math.pow", mathPow)
}

func mathAbs(args []types.Value) (types.Value, error) {
	if err := requireArgs("math.abs", args, 1, 1); err != nil {
		return types.Null, err
	}
	switch v := args[0]; v.Type() {
	case types.TypeInt:
		if v.AsInt() == math.MinInt64 {
			return types.Null, types.NewValueError(fmt.Sprintf("math.abs: integer overflow for %d", v.AsInt()))
		}
		if v.AsInt() < 0 {
			return types.NewInt(-v.AsInt()), nil
		}
		return v, nil
	case types.TypeDouble:
		return types.NewDouble(math.Abs(v.AsDouble())), nil
	}
	return types.Null, types.NewTypeError("math.abs requires a number argument")
}

func mathFloor(args []types.Value) (types.Value, error) {
	if err := requireArgs("math.floor", args, 1, 1); err != nil {
		return types.Null, err
	}
	switch v := args[0]; v.Type() {
	case types.TypeInt:
		return v, nil
	case types.TypeDouble:
		return types.NewInt(int64(math.Floor(v.AsDouble()))), nil
	}
	return types.Null, types.NewTypeError("math.floor requires a number argument")
}

// pick returns whichever of two numeric arguments keep selects, preserving
// its original type.
func pick(name string, args []types.Value, keep func(a, b float64) bool) (types.Value, error) {
	if err := requireArgs(name, args, 2, 2); err != nil {
		return types.Null, err
	}
	a, err := numberArg(name, args, 0)
	if err != nil {
		return types.Null, err
	}
	b, err := numberArg(name, args, 1)
	if err != nil {
		return types.Null, err
	}
	if keep(a, b) {
		return args[0], nil
	}
	return args[1], nil
}

// mathPow keeps integer results for integer operands with a non-negative
// exponent.
func mathPow(args []types.Value) (types.Value, error) {
	if err := requireArgs("math.pow", args, 2, 2); err != nil {
		return types.Null, err
	}
	base, err := numberArg("math.pow", args, 0)
	if err != nil {
		return types.Null, err
	}
	exp, err := numberArg("math.pow", args, 1)
	if err != nil {
		return types.Null, err
	}
	if args[0].Type() == types.TypeInt && args[1].Type() == types.TypeInt && exp >= 0 {
		result, b, n := int64(1), args[0].AsInt(), args[1].AsInt()
		for n > 0 {
			if n&1 == 1 {
				result *= b
			}
			b *= b
			n >>= 1
		}
		return types.NewInt(result), nil
	}
	return types.NewDouble(math.Pow(base, exp)), nil
}
