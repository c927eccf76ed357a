package eval

import (
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Env binds parameters to values. Bind never modifies its receiver; it
// returns a new child. The nil *Env is the empty environment. An Env is
// owned by a single evaluation and is not safe for concurrent use.
type Env struct {
	parent *Env
	slots  map[*tree.Parameter]*slot
}

// slot holds a bound value, or the argument expression of a splice point
// together with the environment it must be evaluated in. Pending slots are
// evaluated at most once, on first read.
type slot struct {
	value types.Value
	err   error
	ready bool

	node tree.Node
	env  *Env
}

// Bind returns a child of e in which p denotes v.
func (e *Env) Bind(p *tree.Parameter, v types.Value) *Env {
	return &Env{parent: e, slots: map[*tree.Parameter]*slot{p: {value: v, ready: true}}}
}

// BindAll binds params[i] to args[i]. A parameter listed twice takes the
// later value. len(args) must equal len(params).
func (e *Env) BindAll(params []*tree.Parameter, args []types.Value) *Env {
	child := &Env{parent: e, slots: make(map[*tree.Parameter]*slot, len(params))}
	for i, p := range params {
		child.slots[p] = &slot{value: args[i], ready: true}
	}
	return child
}

func (e *Env) lookup(p *tree.Parameter) (*slot, bool) {
	for ; e != nil; e = e.parent {
		if s, ok := e.slots[p]; ok {
			return s, true
		}
	}
	return nil, false
}

// Lookup returns the value bound to p. Pending splice arguments are not
// forced; use an Evaluator for that.
func (e *Env) Lookup(p *tree.Parameter) (types.Value, bool) {
	s, ok := e.lookup(p)
	if !ok || !s.ready {
		return types.Null, false
	}
	return s.value, true
}
