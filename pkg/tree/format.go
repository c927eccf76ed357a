package tree

import (
	"math"
	"strconv"
	"strings"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// Precedence table for binary operators (higher = tighter binding).
var precedence = map[Op]int{
	OpOr:  1,
	OpAnd: 2,
	OpEq:  4, OpNeq: 4, OpLt: 4, OpGt: 4, OpLte: 4, OpGte: 4, OpIn: 4, OpNotIn: 4,
	OpAdd: 5, OpSub: 5,
	OpMul: 6, OpDiv: 6, OpMod: 6, OpIntDiv: 6,
}

const (
	notPrecedence        = 3
	comparisonPrecedence = 4
)

// Format renders n in expression-language source form. Function values
// embedded in constants print as their name when they have one.
func Format(n Node) string {
	var sb strings.Builder
	writeNode(&sb, n)
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Constant:
		writeValue(sb, n.Value)
	case *Parameter:
		sb.WriteString(n.Name)
	case *Member:
		if n.Object != nil {
			writeOperand(sb, n.Object, 8)
			sb.WriteByte('.')
		}
		sb.WriteString(n.Name)
	case *Call:
		sb.WriteString(n.Method.Name)
		writeList(sb, "(", n.Args, ")")
	case *Lambda:
		sb.WriteString("fn(")
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
			if p.Type != types.TypeAny {
				sb.WriteString(": ")
				sb.WriteString(p.Type.String())
			}
		}
		sb.WriteString(") => ")
		writeNode(sb, n.Body)
	case *Binary:
		prec := precedence[n.Op]
		left := prec
		if prec == comparisonPrecedence {
			// Comparisons do not chain.
			left++
		}
		writeOperand(sb, n.Left, left)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		writeOperand(sb, n.Right, prec+1)
	case *Unary:
		if n.Op == OpNot {
			sb.WriteString("not ")
			writeOperand(sb, n.Operand, notPrecedence)
		} else {
			sb.WriteString(n.Op.String())
			writeOperand(sb, n.Operand, 7)
		}
	case *Index:
		writeOperand(sb, n.Object, 8)
		sb.WriteByte('[')
		writeNode(sb, n.Index)
		sb.WriteByte(']')
	case *List:
		writeList(sb, "[", n.Elements, "]")
	case *Map:
		sb.WriteByte('{')
		for i := range n.Keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeNode(sb, n.Keys[i])
			sb.WriteString(": ")
			writeNode(sb, n.Values[i])
		}
		sb.WriteByte('}')
	case *Conditional:
		writeList(sb, "if(", []Node{n.Test, n.Then, n.Else}, ")")
	}
}

// writeOperand parenthesizes n when it binds looser than min.
func writeOperand(sb *strings.Builder, n Node, min int) {
	if nodePrecedence(n) < min {
		sb.WriteByte('(')
		writeNode(sb, n)
		sb.WriteByte(')')
		return
	}
	writeNode(sb, n)
}

func nodePrecedence(n Node) int {
	switch n := n.(type) {
	case *Binary:
		return precedence[n.Op]
	case *Unary:
		if n.Op == OpNot {
			return notPrecedence
		}
		return 7
	case *Lambda:
		return 0
	case *Constant:
		if _, ok := AsLambda(n.Value); ok {
			return 0
		}
		// Numbers bind looser than member access and indexing so that
		// 1.x never prints.
		if _, ok := n.Value.AsNumber(); ok {
			return 7
		}
	}
	return 8
}

func writeList(sb *strings.Builder, open string, nodes []Node, close string) {
	sb.WriteString(open)
	for i, c := range nodes {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeNode(sb, c)
	}
	sb.WriteString(close)
}

func writeValue(sb *strings.Builder, v types.Value) {
	switch v.Type() {
	case types.TypeString:
		sb.WriteString(strconv.Quote(v.AsString()))
	case types.TypeDouble:
		f := v.AsDouble()
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !math.IsNaN(f) && !math.IsInf(f, 0) && !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		sb.WriteString(s)
	case types.TypeList:
		sb.WriteByte('[')
		for i, item := range v.AsList() {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item)
		}
		sb.WriteByte(']')
	case types.TypeMap:
		m := v.AsMap()
		sb.WriteByte('{')
		for i, k := range m.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			val, _ := m.Get(k)
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			writeValue(sb, val)
		}
		sb.WriteByte('}')
	case types.TypeFunction:
		if l, ok := AsLambda(v); ok {
			if l.Name != "" {
				sb.WriteString(l.Name)
				return
			}
			writeNode(sb, l)
			return
		}
		sb.WriteString(v.String())
	default:
		sb.WriteString(v.String())
	}
}
