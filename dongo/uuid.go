package dongo

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ToUUID coerces a value into a uuid.UUID. It accepts uuid.UUID,
// integers, digit strings and RFC 4122 strings.
func ToUUID(val interface{}) (uuid.UUID, error) {
	switch v := val.(type) {
	case uuid.UUID:
		return v, nil
	case int:
		return uuidFromInt(big.NewInt(int64(v)))
	case int64:
		return uuidFromInt(big.NewInt(v))
	case uint64:
		return uuidFromInt(new(big.Int).SetUint64(v))
	case string:
		if isDigits(v) {
			n, ok := new(big.Int).SetString(v, 10)
			if !ok {
				return uuid.Nil, fmt.Errorf("dongo: cannot parse uuid from digits %q", v)
			}
			return uuidFromInt(n)
		}
		parsed, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, fmt.Errorf("dongo: cannot parse uuid from %q: %w", v, err)
		}
		return parsed, nil
	}
	return uuid.Nil, fmt.Errorf("dongo: cannot find uuid unless string, int or UUID type: %T", val)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

func uuidFromInt(n *big.Int) (uuid.UUID, error) {
	if n.Sign() < 0 || n.BitLen() > 128 {
		return uuid.Nil, fmt.Errorf("dongo: integer %s out of uuid range", n)
	}
	var buf [16]byte
	n.FillBytes(buf[:])
	out, err := uuid.FromBytes(buf[:])
	if err != nil {
		return uuid.Nil, err
	}
	return out, nil
}

// uuidFromID derives the deterministic secondary identifier for a
// primary id: the first 16 bytes of its sha256 digest.
func uuidFromID(id string) uuid.UUID {
	sum := sha256.Sum256([]byte(id))
	out, _ := uuid.FromBytes(sum[:16])
	return out
}
