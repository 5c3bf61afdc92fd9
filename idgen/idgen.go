// Package idgen provides pluggable ID generation for the text extraction
// service.
//
// Batch identifiers must stay unique across rapid submissions: two batches
// submitted within the same second still get distinct ids. The strategy is
// a startup-time decision — constructors accept a Generator so tests can
// inject deterministic ids.
package idgen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short, URL-safe, fast. Used for batch id suffixes where a full UUID is
// too verbose.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		b := make([]byte, length)
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range b {
			b[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(b)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable and globally unique; used for request-scoped ids.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Batch returns a Generator producing batch identifiers in the format
// "batch_<unixseconds>_<suffix>". The timestamp keeps ids sortable by
// submission time; the suffix disambiguates same-second submissions.
func Batch(suffix Generator) Generator {
	return func() string {
		return fmt.Sprintf("batch_%d_%s", time.Now().Unix(), suffix())
	}
}

// Default is the service default batch id strategy.
var Default Generator = Batch(NanoID(6))
