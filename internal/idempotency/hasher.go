package idempotency

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hasher turns an ordered list of parts into a fixed-width key.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: strings.ToLower(algorithm)}
}

func (h *Hasher) ComputeHash(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("no parts specified for hashing")
	}

	input := []byte(strings.Join(parts, "|"))

	switch h.algorithm {
	case "md5":
		sum := md5.Sum(input)
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum(input)
		return hex.EncodeToString(sum[:]), nil
	default:
		sum := sha256.Sum256(input)
		return hex.EncodeToString(sum[:]), nil
	}
}
