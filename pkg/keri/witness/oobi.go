// Copyright 2025 Certen Protocol
//
// OOBI (Out-Of-Band Introduction) URL construction, supplemented from
// original_source/crates/kerihost-witness/src/oobi.rs: an OOBI is not
// just "a discovery URL," it has two distinct rooted forms plus a
// .well-known-prefixed alias, per spec.md §10 item 1.
package witness

import "fmt"

// ControllerOOBI returns the controller-rooted OOBI for aid: a bare
// fetch-my-KEL-from-anywhere URL that names no specific witness.
func ControllerOOBI(publicURL, aid string) string {
	return fmt.Sprintf("%s/oobi/%s", publicURL, aid)
}

// WitnessOOBI returns the witness-rooted OOBI for aid: it pins the
// specific witness the controller should fetch the KEL and receipts
// from, per oobi.rs's witness_oobi_url.
func WitnessOOBI(publicURL, aid, witnessPrefix string) string {
	return fmt.Sprintf("%s/oobi/%s/witness/%s", publicURL, aid, witnessPrefix)
}

// WellKnownOOBI returns the .well-known-prefixed alias form of a
// witness-rooted OOBI, for controllers that resolve identity documents
// through the .well-known convention rather than a raw /oobi path.
func WellKnownOOBI(publicURL, aid, witnessPrefix string) string {
	return fmt.Sprintf("%s/.well-known/keri/oobi/%s/witness/%s", publicURL, aid, witnessPrefix)
}
