package event

import (
	"encoding/json"
	"strconv"
)

// Parse decodes raw KED bytes into an Event, verifying the version
// string's declared size and the SAID. Raw is retained unmodified on
// the returned Event for later signature verification.
func Parse(raw []byte) (*Event, error) {
	var ked KED
	if err := json.Unmarshal(raw, &ked); err != nil {
		return nil, invalidf("malformed JSON: %v", err)
	}

	size, err := parseVersion(ked.Version)
	if err != nil {
		return nil, err
	}
	if size != len(raw) {
		return nil, invalidf("version string declares size %d, raw is %d bytes", size, len(raw))
	}

	if !ked.Type.Valid() {
		return nil, invalidf("unknown event type %q", ked.Type)
	}

	sn, err := parseSn(ked.Sn)
	if err != nil {
		return nil, err
	}

	if ked.Prefix == "" {
		return nil, invalidf("missing prefix (i)")
	}
	if ked.Digest == "" {
		return nil, invalidf("missing digest (d)")
	}
	if sn == 0 {
		if ked.PriorDigest != "" {
			return nil, invalidf("sn=0 event must not carry a prior digest (p)")
		}
	} else if ked.PriorDigest == "" {
		return nil, invalidf("sn>0 event missing prior digest (p)")
	}

	if err := verifySAID(raw, ked.Digest); err != nil {
		return nil, err
	}

	return &Event{KED: ked, Raw: raw, SnUint: sn}, nil
}

// parseSn parses the "s" field: lower-case hex, no leading zeros, except
// the literal "0" itself.
func parseSn(s string) (uint64, error) {
	if s == "" {
		return 0, invalidf("missing sequence number (s)")
	}
	if s != "0" && s[0] == '0' {
		return 0, invalidf("sequence number %q has a leading zero", s)
	}
	for _, c := range s {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return 0, invalidf("sequence number %q is not lower-case hex", s)
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, invalidf("sequence number %q overflow: %v", s, err)
	}
	return n, nil
}

// formatSn renders a sequence number the way parseSn expects to read it
// back: lower-case hex, no leading zeros.
func formatSn(sn uint64) string {
	return strconv.FormatUint(sn, 16)
}
