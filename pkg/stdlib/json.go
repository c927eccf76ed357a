package stdlib

import (
	"encoding/json"
	"fmt"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerJSON registers json.* functions.
func (r *Registry) registerJSON() {
	r.Register("json.decode", jsonDecode)
	r.Register("json.encode_to_string", jsonEncodeToString)
}

func jsonDecode(args []types.Value) (types.Value, error) {
	if err := requireArgs("json.decode", args, 1, 1); err != nil {
		return types.Null, err
	}
	s, err := stringArg("json.decode", args, 0)
	if err != nil {
		return types.Null, err
	}
	var raw interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return types.Null, types.NewValueError(fmt.Sprintf("json.decode: invalid JSON: %v", err))
	}
	return types.ValueFromJSON(raw), nil
}

func jsonEncodeToString(args []types.Value) (types.Value, error) {
	if err := requireArgs("json.encode_to_string", args, 1, 1); err != nil {
		return types.Null, err
	}
	b, err := args[0].MarshalJSON()
	if err != nil {
		return types.Null, err
	}
	return types.NewString(string(b)), nil
}
