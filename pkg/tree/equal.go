package tree

// Equal reports whether a and b are structurally equal. Parameters are
// equal only when they are the same identity; constants compare by type and
// value, with function values compared by identity.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Constant:
		bc := b.(*Constant)
		return a.Value.Type() == bc.Value.Type() && a.Value.Equal(bc.Value)
	case *Parameter:
		return a == b.(*Parameter)
	case *Member:
		bm := b.(*Member)
		return a.Name == bm.Name && Equal(a.Object, bm.Object)
	case *Call:
		bc := b.(*Call)
		return a.Method == bc.Method && equalAll(a.Args, bc.Args)
	case *Lambda:
		bl := b.(*Lambda)
		if a.Result != bl.Result || len(a.Params) != len(bl.Params) {
			return false
		}
		for i := range a.Params {
			if a.Params[i] != bl.Params[i] {
				return false
			}
		}
		return Equal(a.Body, bl.Body)
	case *Binary:
		bb := b.(*Binary)
		return a.Op == bb.Op && Equal(a.Left, bb.Left) && Equal(a.Right, bb.Right)
	case *Unary:
		bu := b.(*Unary)
		return a.Op == bu.Op && Equal(a.Operand, bu.Operand)
	case *Index:
		bi := b.(*Index)
		return Equal(a.Object, bi.Object) && Equal(a.Index, bi.Index)
	case *List:
		return equalAll(a.Elements, b.(*List).Elements)
	case *Map:
		bm := b.(*Map)
		return equalAll(a.Keys, bm.Keys) && equalAll(a.Values, bm.Values)
	case *Conditional:
		bc := b.(*Conditional)
		return Equal(a.Test, bc.Test) && Equal(a.Then, bc.Then) && Equal(a.Else, bc.Else)
	}
	return false
}

func equalAll(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
