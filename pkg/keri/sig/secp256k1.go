// Copyright 2025 Certen Protocol
//
// Secp256k1/ECDSA signature scheme, wired because github.com/ethereum/
// go-ethereum is a direct teacher dependency and KERI's codec table
// reserves a code for secp256k1 verifier keys. Witness non-transferable
// identities almost always use Ed25519 in practice, so this scheme
// exists for controller keys on AIDs that chose secp256k1, not for
// witness prefixes.
package sig

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/seriouscoderone/kerihost/pkg/keri/qb64"
)

const secp256k1CodeLen = len(Secp256k1ECDSA)

// Secp256k1Verifier verifies ECDSA signatures over the secp256k1 curve
// using go-ethereum's crypto package, expecting the 65-byte
// [R || S || V] recoverable signature form go-ethereum produces.
type Secp256k1Verifier struct{}

func (Secp256k1Verifier) Scheme() Scheme { return Secp256k1ECDSA }

func (Secp256k1Verifier) Verify(qb64Pub string, msg []byte, qb64Sig string) (bool, error) {
	rawPub, err := qb64.Decode(qb64Pub, secp256k1CodeLen)
	if err != nil {
		return false, fmt.Errorf("%w: decode key: %v", ErrInvalidSignature, err)
	}
	rawSig, err := qb64.Decode(qb64Sig, secp256k1CodeLen)
	if err != nil {
		return false, fmt.Errorf("%w: decode signature: %v", ErrInvalidSignature, err)
	}
	if len(rawSig) != 65 {
		return false, fmt.Errorf("%w: signature is %d bytes, want 65", ErrInvalidSignature, len(rawSig))
	}
	hash := ethcrypto.Keccak256(msg)
	recoveredPub, err := ethcrypto.SigToPub(hash, rawSig)
	if err != nil {
		return false, fmt.Errorf("%w: recover public key: %v", ErrInvalidSignature, err)
	}
	recoveredBytes := ethcrypto.FromECDSAPub(recoveredPub)
	return string(recoveredBytes) == string(rawPub), nil
}
