package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

func (m *machine) binary(n *tree.Binary, env *Env) (types.Value, error) {
	left, err := m.eval(n.Left, env)
	if err != nil {
		return types.Null, err
	}

	// and/or short-circuit and yield the deciding operand.
	switch n.Op {
	case tree.OpAnd:
		if !left.Truthy() {
			return left, nil
		}
		return m.eval(n.Right, env)
	case tree.OpOr:
		if left.Truthy() {
			return left, nil
		}
		return m.eval(n.Right, env)
	}

	right, err := m.eval(n.Right, env)
	if err != nil {
		return types.Null, err
	}
	return applyBinary(n.Op, left, right)
}

func applyBinary(op tree.Op, left, right types.Value) (types.Value, error) {
	switch op {
	case tree.OpAdd:
		return add(left, right)
	case tree.OpSub:
		return arith("-", left, right, subInt, func(a, b float64) float64 { return a - b })
	case tree.OpMul:
		return arith("*", left, right, mulInt, func(a, b float64) float64 { return a * b })
	case tree.OpDiv:
		a, b, err := numbers("/", left, right)
		if err != nil {
			return types.Null, err
		}
		if b == 0 {
			return types.Null, types.NewZeroDivisionError()
		}
		return types.NewDouble(a / b), nil
	case tree.OpMod:
		return modulo(left, right)
	case tree.OpIntDiv:
		return intDivide(left, right)
	case tree.OpEq:
		return types.NewBool(left.Equal(right)), nil
	case tree.OpNeq:
		return types.NewBool(!left.Equal(right)), nil
	case tree.OpLt, tree.OpGt, tree.OpLte, tree.OpGte:
		c, err := compare(left, right)
		if err != nil {
			return types.Null, err
		}
		switch op {
		case tree.OpLt:
			return types.NewBool(c < 0), nil
		case tree.OpGt:
			return types.NewBool(c > 0), nil
		case tree.OpLte:
			return types.NewBool(c <= 0), nil
		}
		return types.NewBool(c >= 0), nil
	case tree.OpIn, tree.OpNotIn:
		found, err := contains(right, left)
		if err != nil {
			return types.Null, err
		}
		return types.NewBool(found == (op == tree.OpIn)), nil
	}
	return types.Null, types.NewValueError(fmt.Sprintf("unsupported binary operator: %s", op))
}

// add concatenates strings and lists and adds numbers. A string never
// combines with a non-string.
func add(left, right types.Value) (types.Value, error) {
	lt, rt := left.Type(), right.Type()
	switch {
	case lt == types.TypeString && rt == types.TypeString:
		return types.NewString(left.AsString() + right.AsString()), nil
	case lt == types.TypeString || rt == types.TypeString:
		return types.Null, types.NewTypeError(
			fmt.Sprintf("unsupported operand types for +: %s and %s (explicit conversion required)", lt, rt))
	case lt == types.TypeList && rt == types.TypeList:
		result := make([]types.Value, 0, len(left.AsList())+len(right.AsList()))
		result = append(result, left.AsList()...)
		return types.NewList(append(result, right.AsList()...)), nil
	}
	return arith("+", left, right, addInt, func(a, b float64) float64 { return a + b })
}

// intOp returns false when the exact result does not fit in an int64.
type intOp func(a, b int64) (int64, bool)

func addInt(a, b int64) (int64, bool) {
	c := a + b
	return c, (a^c)&(b^c) >= 0
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	return c, (a^b)&(a^c) >= 0
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return c, false
	}
	return c, c/b == a
}

func overflowError(sym string, a, b int64) error {
	return types.NewValueError(fmt.Sprintf("integer overflow: %d %s %d", a, sym, b))
}

func arith(sym string, left, right types.Value, op intOp, floatOp func(float64, float64) float64) (types.Value, error) {
	if left.Type() == types.TypeInt && right.Type() == types.TypeInt {
		c, ok := op(left.AsInt(), right.AsInt())
		if !ok {
			return types.Null, overflowError(sym, left.AsInt(), right.AsInt())
		}
		return types.NewInt(c), nil
	}
	a, b, err := numbers(sym, left, right)
	if err != nil {
		return types.Null, err
	}
	return types.NewDouble(floatOp(a, b)), nil
}

func numbers(sym string, left, right types.Value) (float64, float64, error) {
	a, aOk := left.AsNumber()
	b, bOk := right.AsNumber()
	if !aOk || !bOk {
		return 0, 0, types.NewTypeError(
			fmt.Sprintf("unsupported operand types for %s: %s and %s", sym, left.Type(), right.Type()))
	}
	return a, b, nil
}

func modulo(left, right types.Value) (types.Value, error) {
	if left.Type() == types.TypeInt && right.Type() == types.TypeInt {
		if right.AsInt() == 0 {
			return types.Null, types.NewZeroDivisionError()
		}
		return types.NewInt(left.AsInt() % right.AsInt()), nil
	}
	a, b, err := numbers("%", left, right)
	if err != nil {
		return types.Null, err
	}
	if b == 0 {
		return types.Null, types.NewZeroDivisionError()
	}
	return types.NewDouble(math.Mod(a, b)), nil
}

func intDivide(left, right types.Value) (types.Value, error) {
	if left.Type() == types.TypeInt && right.Type() == types.TypeInt {
		if right.AsInt() == 0 {
			return types.Null, types.NewZeroDivisionError()
		}
		if left.AsInt() == math.MinInt64 && right.AsInt() == -1 {
			return types.Null, overflowError("//", left.AsInt(), right.AsInt())
		}
		return types.NewInt(left.AsInt() / right.AsInt()), nil
	}
	a, b, err := numbers("//", left, right)
	if err != nil {
		return types.Null, err
	}
	if b == 0 {
		return types.Null, types.NewZeroDivisionError()
	}
	return types.NewInt(int64(math.Floor(a / b))), nil
}

// compare orders two numbers or two strings.
func compare(a, b types.Value) (int, error) {
	if an, ok := a.AsNumber(); ok {
		if bn, ok := b.AsNumber(); ok {
			switch {
			case an < bn:
				return -1, nil
			case an > bn:
				return 1, nil
			}
			return 0, nil
		}
	}
	if a.Type() == types.TypeString && b.Type() == types.TypeString {
		return strings.Compare(a.AsString(), b.AsString()), nil
	}
	return 0, types.NewTypeError(fmt.Sprintf("cannot compare %s and %s", a.Type(), b.Type()))
}

func contains(container, val types.Value) (bool, error) {
	switch container.Type() {
	case types.TypeList:
		for _, item := range container.AsList() {
			if val.Equal(item) {
				return true, nil
			}
		}
		return false, nil
	case types.TypeMap:
		if val.Type() != types.TypeString {
			return false, types.NewTypeError("'in' on map requires string key")
		}
		_, found := container.AsMap().Get(val.AsString())
		return found, nil
	case types.TypeString:
		if val.Type() != types.TypeString {
			return false, types.NewTypeError("'in' on string requires string operand")
		}
		return strings.Contains(container.AsString(), val.AsString()), nil
	}
	return false, types.NewTypeError(fmt.Sprintf("'in' not supported for %s", container.Type()))
}

func (m *machine) unary(n *tree.Unary, env *Env) (types.Value, error) {
	operand, err := m.eval(n.Operand, env)
	if err != nil {
		return types.Null, err
	}
	switch n.Op {
	case tree.OpNeg:
		switch operand.Type() {
		case types.TypeInt:
			if operand.AsInt() == math.MinInt64 {
				return types.Null, types.NewValueError(fmt.Sprintf("integer overflow: -(%d)", operand.AsInt()))
			}
			return types.NewInt(-operand.AsInt()), nil
		case types.TypeDouble:
			return types.NewDouble(-operand.AsDouble()), nil
		}
		return types.Null, types.NewTypeError(fmt.Sprintf("unary minus not supported for %s", operand.Type()))
	case tree.OpNot:
		return types.NewBool(!operand.Truthy()), nil
	}
	return types.Null, types.NewValueError(fmt.Sprintf("unsupported unary operator: %s", n.Op))
}

func (m *machine) index(n *tree.Index, env *Env) (types.Value, error) {
	obj, err := m.eval(n.Object, env)
	if err != nil {
		return types.Null, err
	}
	idx, err := m.eval(n.Index, env)
	if err != nil {
		return types.Null, err
	}

	switch obj.Type() {
	case types.TypeList:
		if idx.Type() != types.TypeInt {
			return types.Null, types.NewTypeError("list index must be an integer")
		}
		list := obj.AsList()
		i := idx.AsInt()
		if i < 0 || i >= int64(len(list)) {
			return types.Null, types.NewIndexError(
				fmt.Sprintf("list index %d out of range (length %d)", i, len(list)))
		}
		return list[i], nil
	case types.TypeMap:
		if idx.Type() != types.TypeString {
			return types.Null, types.NewTypeError("map key must be a string")
		}
		val, ok := obj.AsMap().Get(idx.AsString())
		if !ok {
			return types.Null, types.NewKeyError(fmt.Sprintf("key '%s' not found in map", idx.AsString()))
		}
		return val, nil
	case types.TypeString:
		if idx.Type() != types.TypeInt {
			return types.Null, types.NewTypeError("string index must be an integer")
		}
		s := obj.AsString()
		i := idx.AsInt()
		if i < 0 {
			i += int64(len(s))
		}
		if i < 0 || i >= int64(len(s)) {
			return types.Null, types.NewIndexError(
				fmt.Sprintf("string index %d out of range (length %d)", idx.AsInt(), len(s)))
		}
		return types.NewString(s[i : i+1]), nil
	}
	return types.Null, types.NewTypeError(fmt.Sprintf("cannot index %s", obj.Type()))
}

func (m *machine) mapLiteral(n *tree.Map, env *Env) (types.Value, error) {
	out := types.NewOrderedMap()
	for i := range n.Keys {
		key, err := m.eval(n.Keys[i], env)
		if err != nil {
			return types.Null, err
		}
		if key.Type() != types.TypeString {
			return types.Null, types.NewTypeError("map key must be a string")
		}
		val, err := m.eval(n.Values[i], env)
		if err != nil {
			return types.Null, err
		}
		out.Set(key.AsString(), val)
	}
	return types.NewMap(out), nil
}
