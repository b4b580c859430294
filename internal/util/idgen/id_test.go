package idgen

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestID(t *testing.T) {
	a := ID()
	time.Sleep(2 * time.Millisecond)
	b := ID()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("bad id length: %q, %q", a, b)
	}
	if a[:10] > b[:10] {
		t.Fatalf("ids not ordered by time: %q > %q", a, b)
	}
	seen := make(map[string]struct{})
	for range 1000 {
		id := ID()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestSecureKey(t *testing.T) {
	k, err := SecureKey(32)
	if err != nil {
		t.Fatalf("secure key: %v", err)
	}
	raw, err := hex.DecodeString(k)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("bad key length: expected = 32, got = %v", len(raw))
	}
}
