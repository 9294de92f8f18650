package event

import (
	"fmt"
	"strconv"
)

// versionLen is the fixed byte length of the "v" field's value:
// PPPPvvKKKKssssss_ — 4 + 2 + 4 + 6 + 1.
const versionLen = 17

// parseVersion validates and decodes a KERI version string, returning the
// declared total serialized size in bytes.
func parseVersion(v string) (size int, err error) {
	if len(v) != versionLen {
		return 0, invalidf("version string has length %d, want %d", len(v), versionLen)
	}
	if v[0:4] != "KERI" {
		return 0, invalidf("version string protocol %q, want KERI", v[0:4])
	}
	if v[4:6] != "10" {
		return 0, invalidf("version string major.minor %q, want 10", v[4:6])
	}
	if v[6:10] != "JSON" {
		return 0, invalidf("version string serialization %q, want JSON", v[6:10])
	}
	if v[16] != '_' {
		return 0, invalidf("version string terminator %q, want _", string(v[16]))
	}
	sizeHex := v[10:16]
	n, err := strconv.ParseInt(sizeHex, 16, 64)
	if err != nil {
		return 0, invalidf("version string size field %q is not hex: %v", sizeHex, err)
	}
	return int(n), nil
}

// buildVersion renders the version string for a serialized event of the
// given total byte size.
func buildVersion(size int) string {
	return fmt.Sprintf("KERI10JSON%06x_", size)
}
