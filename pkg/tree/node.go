// Package tree defines the quoted, typed expression tree that the inliner
// rewrites and the evaluator executes. The node set is closed: every node is
// one of the types declared in this file.
package tree

import (
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	KindConstant Kind = iota
	KindParameter
	KindMember
	KindCall
	KindLambda
	KindBinary
	KindUnary
	KindIndex
	KindList
	KindMap
	KindConditional
)

var kindNames = [...]string{
	KindConstant:    "Constant",
	KindParameter:   "Parameter",
	KindMember:      "Member",
	KindCall:        "Call",
	KindLambda:      "Lambda",
	KindBinary:      "Binary",
	KindUnary:       "Unary",
	KindIndex:       "Index",
	KindList:        "List",
	KindMap:         "Map",
	KindConditional: "Conditional",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Node is the interface for all expression tree nodes.
type Node interface {
	Kind() Kind
	node()
}

// Constant holds a literal value. Function definitions embedded as values
// are constants too (see FuncValue).
type Constant struct {
	Value types.Value
}

// Parameter is a formal parameter handle. Parameters are compared by
// pointer identity; two parameters with the same name are distinct.
type Parameter struct {
	Name string
	Type types.ValueType
}

// Member reads Name off the value of Object. A nil Object makes it a static
// read resolved against the surrounding static table.
type Member struct {
	Object Node
	Name   string
}

// Method describes the callee of a Call.
type Method struct {
	Name string
}

// UseMethod is the splice marker: a Call to it is expanded in place by the
// inliner. Its first argument denotes the function, the rest its arguments.
var UseMethod = Method{Name: "use"}

// Call invokes Method with Args.
type Call struct {
	Method Method
	Args   []Node
}

// IsSplice reports whether c is a splice point.
func (c *Call) IsSplice() bool {
	return c.Method == UseMethod
}

// Lambda is a function definition: an ordered parameter list and a body.
type Lambda struct {
	Name   string // optional, for diagnostics
	Params []*Parameter
	Body   Node
	Result types.ValueType
}

// Op is a unary or binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpIntDiv
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
	OpAnd
	OpOr
	OpIn
	OpNotIn
	OpNeg
	OpNot
)

var opSymbols = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpIntDiv: "//",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpGt: ">", OpLte: "<=", OpGte: ">=",
	OpAnd: "and", OpOr: "or", OpIn: "in", OpNotIn: "not in",
	OpNeg: "-", OpNot: "not",
}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return "?"
}

// Binary is a binary operation (e.g., a + b, x == y, a and b, k in m).
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

// Unary is a unary operation (-x, not x).
type Unary struct {
	Op      Op
	Operand Node
}

// Index is index access (list[0], map["key"]).
type Index struct {
	Object Node
	Index  Node
}

// List is a list literal.
type List struct {
	Elements []Node
}

// Map is a map literal. Keys must evaluate to strings.
type Map struct {
	Keys   []Node
	Values []Node
}

// Conditional evaluates Then or Else depending on Test. Only the chosen
// branch is evaluated.
type Conditional struct {
	Test Node
	Then Node
	Else Node
}

func (*Constant) Kind() Kind    { return KindConstant }
func (*Parameter) Kind() Kind   { return KindParameter }
func (*Member) Kind() Kind      { return KindMember }
func (*Call) Kind() Kind        { return KindCall }
func (*Lambda) Kind() Kind      { return KindLambda }
func (*Binary) Kind() Kind      { return KindBinary }
func (*Unary) Kind() Kind       { return KindUnary }
func (*Index) Kind() Kind       { return KindIndex }
func (*List) Kind() Kind        { return KindList }
func (*Map) Kind() Kind         { return KindMap }
func (*Conditional) Kind() Kind { return KindConditional }

func (*Constant) node()    {}
func (*Parameter) node()   {}
func (*Member) node()      {}
func (*Call) node()        {}
func (*Lambda) node()      {}
func (*Binary) node()      {}
func (*Unary) node()       {}
func (*Index) node()       {}
func (*List) node()        {}
func (*Map) node()         {}
func (*Conditional) node() {}

// FuncValue wraps a lambda as a value so it can be embedded in a Constant or
// published in a static table.
func FuncValue(l *Lambda) types.Value {
	return types.NewFunction(l)
}

// AsLambda extracts a lambda from a function value.
func AsLambda(v types.Value) (*Lambda, bool) {
	if v.Type() != types.TypeFunction {
		return nil, false
	}
	l, ok := v.AsFunction().(*Lambda)
	return l, ok && l != nil
}

// String renders the lambda in source form.
func (l *Lambda) String() string {
	return Format(l)
}
