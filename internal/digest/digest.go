package digest

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"slices"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

const DefaultName = "sha512"

// Func is a deterministic one-way hash over strings. Sum returns lowercase hex.
type Func interface {
	Name() string
	Sum(s string) string
	Valid(s string) bool
}

type hashFunc struct {
	name string
	size int
	mk   func() hash.Hash
}

func (f *hashFunc) Name() string { return f.name }

func (f *hashFunc) Sum(s string) string {
	h := f.mk()
	_, _ = h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

func (f *hashFunc) Valid(s string) bool {
	if len(s) != 2*f.size {
		return false
	}
	for i := range len(s) {
		c := s[i]
		if !(('0' <= c && c <= '9') || ('a' <= c && c <= 'f')) {
			return false
		}
	}
	return true
}

func mustBlake2b() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	return h
}

var algorithms = map[string]*hashFunc{
	"sha512":      {name: "sha512", size: sha512.Size, mk: sha512.New},
	"sha3-512":    {name: "sha3-512", size: 64, mk: sha3.New512},
	"blake2b-512": {name: "blake2b-512", size: blake2b.Size, mk: mustBlake2b},
}

func Lookup(name string) (Func, error) {
	if name == "" {
		name = DefaultName
	}
	f, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return f, nil
}

func Default() Func {
	return algorithms[DefaultName]
}

func Names() []string {
	names := make([]string, 0, len(algorithms))
	for n := range algorithms {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
