package stdlib

import (
	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerList registers list.* functions.
func (r *Registry) registerList() {
	r.Register("list.concat", listConcat)
	r.Register("list.prepend", listPrepend)
}

// listConcat appends value to list, or all of value's elements when it is a
// list itself.
func listConcat(args []types.Value) (types.Value, error) {
	if err := requireArgs("list.concat", args, 2, 2); err != nil {
		return types.Null, err
	}
	list, err := listArg("list.concat", args, 0)
	if err != nil {
		return types.Null, err
	}
	out := make([]types.Value, 0, len(list)+1)
	out = append(out, list...)
	if args[1].Type() == types.TypeList {
		return types.NewList(append(out, args[1].AsList()...)), nil
	}
	return types.NewList(append(out, args[1])), nil
}

func listPrepend(args []types.Value) (types.Value, error) {
	if err := requireArgs("list.prepend", args, 2, 2); err != nil {
		return types.Null, err
	}
	list, err := listArg("list.prepend", args, 0)
	if err != nil {
		return types.Null, err
	}
	out := make([]types.Value, 0, len(list)+1)
	out = append(out, args[1])
	return types.NewList(append(out, list...)), nil
}
