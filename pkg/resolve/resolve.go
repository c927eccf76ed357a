// Package resolve evaluates constant paths: sub-expressions made only of
// constants and member accesses, such as the callee of a splice point.
package resolve

import (
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Statics answers member reads that have no receiver.
type Statics interface {
	LookupStatic(name string) (types.Value, bool)
}

// StaticMap is a Statics backed by a plain map.
type StaticMap map[string]types.Value

// LookupStatic implements Statics.
func (m StaticMap) LookupStatic(name string) (types.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Resolver evaluates constant paths. The zero value has no statics.
type Resolver struct {
	statics Statics
}

// New creates a resolver reading static members from s, which may be nil.
func New(s Statics) *Resolver {
	return &Resolver{statics: s}
}

// Resolve walks a chain of member accesses from its innermost constant (or
// static read) outward and returns the value it denotes. Any node other than
// Constant or Member fails with an UnsupportedExpressionShape error.
func (r *Resolver) Resolve(n tree.Node) (types.Value, error) {
	switch n := n.(type) {
	case *tree.Constant:
		return n.Value, nil
	case *tree.Member:
		if n.Object == nil {
			return r.static(n.Name)
		}
		parent, err := r.Resolve(n.Object)
		if err != nil {
			return types.Null, err
		}
		return types.LookupMember(parent, n.Name)
	case nil:
		return types.Null, types.NewUnsupportedShapeError("empty")
	default:
		return types.Null, types.NewUnsupportedShapeError(n.Kind().String())
	}
}

func (r *Resolver) static(name string) (types.Value, error) {
	if r == nil || r.statics == nil {
		return types.Null, types.NewKeyError(fmt.Sprintf("no static member '%s' (no static table)", name))
	}
	v, ok := r.statics.LookupStatic(name)
	if !ok {
		return types.Null, types.NewKeyError(fmt.Sprintf("static member '%s' not found", name))
	}
	return v, nil
}

// IsConstantPath reports whether n has the shape Resolve accepts, without
// reading any member.
func IsConstantPath(n tree.Node) bool {
	for {
		switch m := n.(type) {
		case *tree.Constant:
			return true
		case *tree.Member:
			if m.Object == nil {
				return true
			}
			n = m.Object
		default:
			return false
		}
	}
}
