package crawler

import (
	"crypto/sha256"
	"math/big"
	"strings"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Identity joins a source prefix and a source-local id: "<prefix>-<id>"
func Identity(prefix, localID string) string {
	return prefix + "-" + localID
}

// HashIdentity derives an identity from a listing URL for sources without a
// native id. The sha256 digest of url is read as a big-endian unsigned
// integer and written in base62 (0-9A-Za-z), most significant digit first.
// Diffing across runs depends on this encoding never changing.
func HashIdentity(prefix, url string) string {
	return Identity(prefix, sha256Base62(url))
}

func sha256Base62(s string) string {
	sum := sha256.Sum256([]byte(s))
	n := new(big.Int).SetBytes(sum[:])
	if n.Sign() == 0 {
		return "0"
	}

	base := big.NewInt(int64(len(base62Alphabet)))
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.QuoRem(n, base, mod)
		out = append(out, base62Alphabet[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Prefix returns the source prefix of an identity (the text before the first "-")
func Prefix(identity string) string {
	prefix, _, _ := strings.Cut(identity, "-")
	return prefix
}
