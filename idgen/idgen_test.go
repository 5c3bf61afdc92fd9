package idgen

import (
	"strings"
	"testing"
)

func TestNanoIDLength(t *testing.T) {
	gen := NanoID(8)
	id := gen()
	if len(id) != 8 {
		t.Fatalf("got length %d, want 8", len(id))
	}
}

func TestNanoIDUnique(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id after %d draws: %s", i, id)
		}
		seen[id] = true
	}
}

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("got length %d, want 36: %s", len(id), id)
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("req_", NanoID(4))
	id := gen()
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("missing prefix: %s", id)
	}
	if len(id) != 8 {
		t.Fatalf("got length %d, want 8", len(id))
	}
}

func TestBatchFormat(t *testing.T) {
	// Batch ids carry a unix timestamp and a suffix — three underscore parts.
	gen := Batch(NanoID(6))
	id := gen()
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "batch" {
		t.Fatalf("unexpected batch id shape: %s", id)
	}
	if len(parts[2]) != 6 {
		t.Fatalf("suffix length %d, want 6: %s", len(parts[2]), id)
	}
}

func TestBatchUniqueSameSecond(t *testing.T) {
	gen := Batch(NanoID(6))
	a, b := gen(), gen()
	if a == b {
		t.Fatalf("two batch ids in the same second collided: %s", a)
	}
}
