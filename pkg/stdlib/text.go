package stdlib

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerText registers text.* functions.
func (r *Registry) registerText() {
	r.Register("text.upper", unaryText("text.upper", strings.ToUpper))
	r.Register("text.lower", unaryText("text.lower", strings.ToLower))
	r.Register("text.split", textSplit)
	r.Register("text.join", textJoin)
	r.Register("text.replace_all", textReplaceAll)
	r.Register("text.substr", textSubstr)
}

func unaryText(name string, f func(string) string) Func {
	return func(args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 1); err != nil {
			return types.Null, err
		}
		s, err := stringArg(name, args, 0)
		if err != nil {
			return types.Null, err
		}
		return types.NewString(f(s)), nil
	}
}

func textSplit(args []types.Value) (types.Value, error) {
	if err := requireArgs("text.split", args, 2, 2); err != nil {
		return types.Null, err
	}
	s, err := stringArg("text.split", args, 0)
	if err != nil {
		return types.Null, err
	}
	sep, err := stringArg("text.split", args, 1)
	if err != nil {
		return types.Null, err
	}
	parts := strings.Split(s, sep)
	out := make([]types.Value, len(parts))
	for i, p := range parts {
		out[i] = types.NewString(p)
	}
	return types.NewList(out), nil
}

func textJoin(args []types.Value) (types.Value, error) {
	if err := requireArgs("text.join", args, 2, 2); err != nil {
		return types.Null, err
	}
	items, err := listArg("text.join", args, 0)
	if err != nil {
		return types.Null, err
	}
	sep, err := stringArg("text.join", args, 1)
	if err != nil {
		return types.Null, err
	}
	parts := make([]string, len(items))
	for i, item := range items {
		if item.Type() != types.TypeString {
			return types.Null, types.NewTypeError(
				fmt.Sprintf("text.join: element %d is %s, not string", i, item.Type()))
		}
		parts[i] = item.AsString()
	}
	return types.NewString(strings.Join(parts, sep)), nil
}

func textReplaceAll(args []types.Value) (types.Value, error) {
	if err := requireArgs("text.replace_all", args, 3, 3); err != nil {
		return types.Null, err
	}
	var s [3]string
	for i := range s {
		v, err := stringArg("text.replace_all", args, i)
		if err != nil {
			return types.Null, err
		}
		s[i] = v
	}
	return types.NewString(strings.ReplaceAll(s[0], s[1], s[2])), nil
}

// textSubstr returns source[start:end] with both bounds clamped to the
// string. end may be omitted.
func textSubstr(args []types.Value) (types.Value, error) {
	if err := requireArgs("text.substr", args, 2, 3); err != nil {
		return types.Null, err
	}
	s, err := stringArg("text.substr", args, 0)
	if err != nil {
		return types.Null, err
	}
	start, err := intArg("text.substr", args, 1)
	if err != nil {
		return types.Null, err
	}
	end := int64(len(s))
	if len(args) == 3 {
		if end, err = intArg("text.substr", args, 2); err != nil {
			return types.Null, err
		}
	}
	clamp := func(i int64) int64 {
		return max(0, min(i, int64(len(s))))
	}
	start, end = clamp(start), clamp(end)
	if start >= end {
		return types.NewString(""), nil
	}
	return types.NewString(s[start:end]), nil
}
