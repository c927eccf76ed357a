package tree

import (
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Const wraps a value in a Constant node.
func Const(v types.Value) *Constant { return &Constant{Value: v} }

func Int(i int64) *Constant      { return Const(types.NewInt(i)) }
func Double(f float64) *Constant { return Const(types.NewDouble(f)) }
func Str(s string) *Constant     { return Const(types.NewString(s)) }
func Bool(b bool) *Constant      { return Const(types.NewBool(b)) }
func Null() *Constant            { return Const(types.Null) }

// Param creates a fresh parameter. Each call returns a distinct identity.
func Param(name string, typ types.ValueType) *Parameter {
	return &Parameter{Name: name, Type: typ}
}

// Func creates a lambda over params.
func Func(result types.ValueType, body Node, params ...*Parameter) *Lambda {
	return &Lambda{Params: params, Body: body, Result: result}
}

// FuncConst embeds a lambda as a constant, the usual way to reference a
// function at a splice point.
func FuncConst(l *Lambda) *Constant { return Const(FuncValue(l)) }

// Field reads name off object.
func Field(object Node, name string) *Member { return &Member{Object: object, Name: name} }

// Static reads a member with no receiver.
func Static(name string) *Member { return &Member{Name: name} }

// CallOf calls the named method.
func CallOf(name string, args ...Node) *Call {
	return &Call{Method: Method{Name: name}, Args: args}
}

// Use builds a splice point expanding fn with args.
func Use(fn Node, args ...Node) *Call {
	all := make([]Node, 0, len(args)+1)
	all = append(all, fn)
	all = append(all, args...)
	return &Call{Method: UseMethod, Args: all}
}

// Bin builds a binary node.
func Bin(op Op, left, right Node) *Binary { return &Binary{Op: op, Left: left, Right: right} }

func Add(l, r Node) *Binary { return Bin(OpAdd, l, r) }
func Sub(l, r Node) *Binary { return Bin(OpSub, l, r) }
func Mul(l, r Node) *Binary { return Bin(OpMul, l, r) }

// Neg negates operand.
func Neg(operand Node) *Unary { return &Unary{Op: OpNeg, Operand: operand} }

// Not negates a condition.
func Not(operand Node) *Unary { return &Unary{Op: OpNot, Operand: operand} }

// At indexes object.
func At(object, index Node) *Index { return &Index{Object: object, Index: index} }

// ListOf builds a list literal.
func ListOf(elements ...Node) *List { return &List{Elements: elements} }

// If builds a conditional.
func If(test, then, els Node) *Conditional { return &Conditional{Test: test, Then: then, Else: els} }
