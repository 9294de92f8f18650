// Package digest implements the self-addressing digest algorithms a Key
// Event Dictionary's "d" field can carry. Each algorithm is identified by
// its qb64 leading code, exactly as KERI's codec table does, so the event
// codec can dispatch on the first characters of a digest string without
// knowing the algorithm up front.
package digest

import (
	"crypto/sha256"
	"errors"

	"github.com/seriouscoderone/kerihost/pkg/keri/qb64"
)

// ErrUnknownCode is returned when a qb64 digest string carries a leading
// code this registry has no algorithm for.
var ErrUnknownCode = errors.New("digest: unknown code")

// Algorithm computes a self-addressing digest over raw bytes and reports
// the fixed qb64 text length its digests encode to.
type Algorithm interface {
	// Code is the qb64 leading code this algorithm owns.
	Code() string
	// Sum returns the qb64-encoded digest of data, including the leading code.
	Sum(data []byte) string
	// Len is the total character length of a qb64 digest under this algorithm,
	// used to size the placeholder run during SAID verification.
	Len() int
}

// sha256Algo implements Algorithm for code "E", the 44-character qb64
// SHA2-256 digest used throughout this codebase as KERI's default SAID
// algorithm. No example in the reference corpus ships a Blake3 or
// CESR-native digest primitive, so this single corner of the codec is
// built on the standard library's crypto/sha256 rather than a
// third-party hash package; see DESIGN.md.
type sha256Algo struct{}

const sha256Code = "E"

func (sha256Algo) Code() string { return sha256Code }
func (sha256Algo) Len() int     { return qb64.EncodedLen(len(sha256Code), sha256.Size) }
func (sha256Algo) Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return qb64.Encode(sha256Code, sum[:])
}

var registry = map[string]Algorithm{
	sha256Code: sha256Algo{},
}

// Register adds or replaces an algorithm by its code. Exposed so a
// deployment can add additional digest codes without modifying this
// package.
func Register(a Algorithm) {
	registry[a.Code()] = a
}

// Default returns the algorithm new events are built with when the
// caller does not request a specific code: "E" (SHA2-256).
func Default() Algorithm { return registry[sha256Code] }

// Lookup returns the algorithm owning the leading code found in a qb64
// digest string, or ErrUnknownCode if no algorithm claims it.
func Lookup(qb64Digest string) (Algorithm, error) {
	if len(qb64Digest) == 0 {
		return nil, ErrUnknownCode
	}
	if a, ok := registry[qb64Digest[:1]]; ok {
		return a, nil
	}
	return nil, ErrUnknownCode
}
