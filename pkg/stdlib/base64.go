package stdlib

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerBase64 registers base64.* functions over strings.
func (r *Registry) registerBase64() {
	r.Register("base64.encode", base64Encode)
	r.Register("base64.decode", base64Decode)
}

func base64Encode(args []types.Value) (types.Value, error) {
	if err := requireArgs("base64.encode", args, 1, 1); err != nil {
		return types.Null, err
	}
	s, err := stringArg("base64.encode", args, 0)
	if err != nil {
		return types.Null, err
	}
	return types.NewString(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

// base64Decode accepts standard and URL-safe alphabets. The decoded bytes
// must be valid UTF-8.
func base64Decode(args []types.Value) (types.Value, error) {
	if err := requireArgs("base64.decode", args, 1, 1); err != nil {
		return types.Null, err
	}
	s, err := stringArg("base64.decode", args, 0)
	if err != nil {
		return types.Null, err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if decoded, err = base64.URLEncoding.DecodeString(s); err != nil {
			return types.Null, types.NewValueError(fmt.Sprintf("base64.decode: invalid base64: %v", err))
		}
	}
	if !utf8.Valid(decoded) {
		return types.Null, types.NewValueError("base64.decode: decoded data is not valid UTF-8")
	}
	return types.NewString(string(decoded)), nil
}
