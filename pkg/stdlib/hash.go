package stdlib

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// registerHash registers hash.* functions. Digests are returned as
// lowercase hex strings.
func (r *Registry) registerHash() {
	r.Register("hash.sha256", hashSHA256)
	r.Register("hash.compute_checksum", hashComputeChecksum)
}

func hashSHA256(args []types.Value) (types.Value, error) {
	if err := requireArgs("hash.sha256", args, 1, 1); err != nil {
		return types.Null, err
	}
	s, err := stringArg("hash.sha256", args, 0)
	if err != nil {
		return types.Null, err
	}
	return digest(sha256.New(), s), nil
}

func hashComputeChecksum(args []types.Value) (types.Value, error) {
	if err := requireArgs("hash.compute_checksum", args, 2, 2); err != nil {
		return types.Null, err
	}
	data, err := stringArg("hash.compute_checksum", args, 0)
	if err != nil {
		return types.Null, err
	}
	algorithm, err := stringArg("hash.compute_checksum", args, 1)
	if err != nil {
		return types.Null, err
	}
	h, err := newHash(algorithm)
	if err != nil {
		return types.Null, err
	}
	return digest(h, data), nil
}

func digest(h hash.Hash, data string) types.Value {
	h.Write([]byte(data))
	return types.NewString(hex.EncodeToString(h.Sum(nil)))
}

func newHash(algorithm string) (hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "SHA256":
		return sha256.New(), nil
	case "SHA384":
		return sha512.New384(), nil
	case "SHA512":
		return sha512.New(), nil
	case "MD5":
		return md5.New(), nil
	case "SHA1":
		return sha1.New(), nil
	case "BLAKE2B", "BLAKE2B256":
		return blake2b.New256(nil)
	case "BLAKE2B512":
		return blake2b.New512(nil)
	}
	return nil, types.NewValueError(fmt.Sprintf("unsupported hash algorithm: %s", algorithm))
}
