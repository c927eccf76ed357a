package tree

import (
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// Rebuild returns a new node of the same kind as n whose child expressions
// are the results of applying f to each child of n, in source order. Leaf
// nodes (Constant, Parameter) are returned as is. Non-expression metadata
// (operators, member names, methods, parameter identities, declared types)
// is carried over unchanged. n itself is never modified.
func Rebuild(n Node, f func(Node) (Node, error)) (Node, error) {
	var err error
	switch n := n.(type) {
	case *Constant, *Parameter:
		return n, nil
	case *Member:
		out := &Member{Name: n.Name}
		if n.Object != nil {
			if out.Object, err = f(n.Object); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *Call:
		args, err := rebuildAll(n.Args, f)
		if err != nil {
			return nil, err
		}
		return &Call{Method: n.Method, Args: args}, nil
	case *Lambda:
		body, err := f(n.Body)
		if err != nil {
			return nil, err
		}
		params := make([]*Parameter, len(n.Params))
		copy(params, n.Params)
		return &Lambda{Name: n.Name, Params: params, Body: body, Result: n.Result}, nil
	case *Binary:
		out := &Binary{Op: n.Op}
		if out.Left, err = f(n.Left); err != nil {
			return nil, err
		}
		if out.Right, err = f(n.Right); err != nil {
			return nil, err
		}
		return out, nil
	case *Unary:
		operand, err := f(n.Operand)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: n.Op, Operand: operand}, nil
	case *Index:
		out := &Index{}
		if out.Object, err = f(n.Object); err != nil {
			return nil, err
		}
		if out.Index, err = f(n.Index); err != nil {
			return nil, err
		}
		return out, nil
	case *List:
		elements, err := rebuildAll(n.Elements, f)
		if err != nil {
			return nil, err
		}
		return &List{Elements: elements}, nil
	case *Map:
		out := &Map{Keys: make([]Node, len(n.Keys)), Values: make([]Node, len(n.Values))}
		for i := range n.Keys {
			if out.Keys[i], err = f(n.Keys[i]); err != nil {
				return nil, err
			}
			if out.Values[i], err = f(n.Values[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *Conditional:
		out := &Conditional{}
		if out.Test, err = f(n.Test); err != nil {
			return nil, err
		}
		if out.Then, err = f(n.Then); err != nil {
			return nil, err
		}
		if out.Else, err = f(n.Else); err != nil {
			return nil, err
		}
		return out, nil
	case nil:
		return nil, types.NewMalformedTreeError("missing child expression")
	default:
		return nil, types.NewMalformedTreeError(fmt.Sprintf("unsupported node type %T", n))
	}
}

func rebuildAll(nodes []Node, f func(Node) (Node, error)) ([]Node, error) {
	out := make([]Node, len(nodes))
	for i, c := range nodes {
		r, err := f(c)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Children returns the direct child expressions of n in source order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Member:
		if n.Object != nil {
			return []Node{n.Object}
		}
	case *Call:
		return n.Args
	case *Lambda:
		return []Node{n.Body}
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Unary:
		return []Node{n.Operand}
	case *Index:
		return []Node{n.Object, n.Index}
	case *List:
		return n.Elements
	case *Map:
		out := make([]Node, 0, 2*len(n.Keys))
		for i := range n.Keys {
			out = append(out, n.Keys[i], n.Values[i])
		}
		return out
	case *Conditional:
		return []Node{n.Test, n.Then, n.Else}
	}
	return nil
}

// Inspect traverses the tree depth-first in pre-order, calling f for each
// node. If f returns false the children of that node are skipped. Function
// definitions embedded in constants are not entered.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// CountSplices returns the number of splice points in n.
func CountSplices(n Node) int {
	count := 0
	Inspect(n, func(n Node) bool {
		if c, ok := n.(*Call); ok && c.IsSplice() {
			count++
		}
		return true
	})
	return count
}
