package stdlib

import (
	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerMapFuncs registers map.* functions. None of them modify their
// arguments.
func (r *Registry) registerMapFuncs() {
	r.Register("map.get", mapGet)
	r.Register("map.delete", mapDelete)
	r.Register("map.merge", mapMerge)
}

// mapGet reads key from m, yielding the optional default (or null) when it
// is missing.
func mapGet(args []types.Value) (types.Value, error) {
	if err := requireArgs("map.get", args, 2, 3); err != nil {
		return types.Null, err
	}
	m, err := mapArg("map.get", args, 0)
	if err != nil {
		return types.Null, err
	}
	key, err := stringArg("map.get", args, 1)
	if err != nil {
		return types.Null, err
	}
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return types.Null, nil
}

func mapDelete(args []types.Value) (types.Value, error) {
	if err := requireArgs("map.delete", args, 2, 2); err != nil {
		return types.Null, err
	}
	m, err := mapArg("map.delete", args, 0)
	if err != nil {
		return types.Null, err
	}
	key, err := stringArg("map.delete", args, 1)
	if err != nil {
		return types.Null, err
	}
	out := types.NewOrderedMap()
	for _, k := range m.Keys() {
		if k != key {
			v, _ := m.Get(k)
			out.Set(k, v)
		}
	}
	return types.NewMap(out), nil
}

// mapMerge merges its map arguments left to right; later keys win.
func mapMerge(args []types.Value) (types.Value, error) {
	if err := requireArgs("map.merge", args, 1, 1<<16); err != nil {
		return types.Null, err
	}
	out := types.NewOrderedMap()
	for i := range args {
		m, err := mapArg("map.merge", args, i)
		if err != nil {
			return types.Null, err
		}
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			out.Set(k, v)
		}
	}
	return types.NewMap(out), nil
}
