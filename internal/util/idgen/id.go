package idgen

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"
)

const idAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

func init() {
	if len(idAlphabet) != 32 {
		panic("must not happen")
	}
	for i := 1; i < len(idAlphabet); i++ {
		if idAlphabet[i-1] >= idAlphabet[i] {
			panic("must not happen")
		}
	}
}

// ID returns a lowercase, time-ordered identifier of 26 characters. It follows
// https://github.com/ulid/spec, but is not monotonic within a millisecond.
func ID() string {
	var b strings.Builder
	ts := uint64(time.Now().UnixMilli()) & ((1 << 48) - 1)
	for i := 45; i >= 0; i -= 5 {
		_ = b.WriteByte(idAlphabet[(ts>>i)&31])
	}
	for range 2 {
		r := rand.Uint64()
		for range 8 {
			_ = b.WriteByte(idAlphabet[r&31])
			r >>= 5
		}
	}
	return b.String()
}

func SecureBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(crand.Reader, b); err != nil {
		return nil, fmt.Errorf("crypto rand: %w", err)
	}
	return b, nil
}

// SecureKey returns n random bytes encoded as hex.
func SecureKey(n int) (string, error) {
	b, err := SecureBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
