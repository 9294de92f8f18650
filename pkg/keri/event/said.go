package event

import (
	"bytes"
	"strings"

	"github.com/seriouscoderone/kerihost/pkg/keri/digest"
)

// placeholderByte is the character SAID computation blanks the digest
// field to. KERI's own codec uses '#' for this role; any character
// outside the qb64 alphabet works equally well since its only purpose
// is to occupy space.
const placeholderByte = '#'

// findFieldSpan locates the byte range of a top-level JSON string field's
// *value* (the bytes between the quotes, exclusive) within raw. It does
// not parse JSON generically — KERI's canonical serialization is compact
// with no embedded whitespace, and digest/version values never contain
// characters requiring escaping, so a literal scan for `"field":"` is
// byte-exact and matches what a CESR-aware parser does.
func findFieldSpan(raw []byte, field string) (start, end int, ok bool) {
	needle := []byte(`"` + field + `":"`)
	idx := bytes.Index(raw, needle)
	if idx < 0 {
		return 0, 0, false
	}
	valStart := idx + len(needle)
	valEnd := bytes.IndexByte(raw[valStart:], '"')
	if valEnd < 0 {
		return 0, 0, false
	}
	return valStart, valStart + valEnd, true
}

// replaceFieldValue returns a copy of raw with the named field's value
// bytes replaced by replacement, preserving everything else byte-exact.
func replaceFieldValue(raw []byte, field string, replacement []byte) ([]byte, bool) {
	start, end, ok := findFieldSpan(raw, field)
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(raw)-(end-start)+len(replacement))
	out = append(out, raw[:start]...)
	out = append(out, replacement...)
	out = append(out, raw[end:]...)
	return out, true
}

// verifySAID recomputes the self-addressing digest over raw with its "d"
// field blanked and compares it byte-for-byte to the digest the event
// actually carries.
func verifySAID(raw []byte, wantDigest string) error {
	algo, err := digest.Lookup(wantDigest)
	if err != nil {
		return invalidf("unrecognized digest code in %q: %v", wantDigest, err)
	}
	placeholder := bytes.Repeat([]byte{placeholderByte}, algo.Len())
	blanked, ok := replaceFieldValue(raw, "d", placeholder)
	if !ok {
		return invalidf("no \"d\" field found to verify SAID")
	}
	got := algo.Sum(blanked)
	if got != wantDigest {
		return invalidf("SAID mismatch: computed %s, event carries %s", got, wantDigest)
	}
	return nil
}

// placeholderValue returns a "d" field value of the correct length for
// algo, entirely placeholder bytes, used by the builder before the real
// SAID is known.
func placeholderValue(algo digest.Algorithm) string {
	return strings.Repeat(string(rune(placeholderByte)), algo.Len())
}
