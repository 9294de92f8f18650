package event

import (
	"encoding/json"
	"fmt"

	"github.com/seriouscoderone/kerihost/pkg/keri/digest"
)

// Build constructs a fully serialized Event from a caller-filled KED
// (every field except Version and Digest, which this function computes).
// It mirrors the SAID verification recipe in reverse: fill the digest
// slot with a placeholder of known length, pick the version string's
// size field (stable because the placeholder and the final SAID share a
// length), then substitute the real SAID into the blanked bytes.
//
// If algo is nil, digest.Default() is used.
func Build(ked KED, algo digest.Algorithm) (*Event, error) {
	if algo == nil {
		algo = digest.Default()
	}
	if !ked.Type.Valid() {
		return nil, invalidf("unknown event type %q", ked.Type)
	}

	draft := ked
	draft.Digest = placeholderValue(algo)
	draft.Version = buildVersion(0)

	sized, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("keri: marshal draft event: %w", err)
	}
	draft.Version = buildVersion(len(sized))

	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("keri: marshal sized event: %w", err)
	}

	said := algo.Sum(raw)
	final, ok := replaceFieldValue(raw, "d", []byte(said))
	if !ok {
		return nil, invalidf("builder: no \"d\" field present after marshal")
	}

	return Parse(final)
}

// WithSn returns a copy of ked with its sequence number field set from a
// uint64, formatted the way parseSn expects to read it back.
func (k KED) WithSn(sn uint64) KED {
	k.Sn = formatSn(sn)
	return k
}
