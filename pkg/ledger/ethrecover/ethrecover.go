// Package ethrecover implements ledger.Recoverer for secp256k1 signatures
// in the Ethereum recoverable-signature format: unlike Ed25519, the
// public key (and therefore the address) can be recovered directly from
// the signature, with no enrollment step required.
package ethrecover

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Recoverer recovers the single secp256k1 address that produced a
// 65-byte [R || S || V] signature.
type Recoverer struct{}

// New returns a Recoverer.
func New() *Recoverer { return &Recoverer{} }

// RecoverAddresses hashes message with Keccak-256 and recovers the
// signing address from the 65-byte signature.
func (r *Recoverer) RecoverAddresses(message, signature []byte) (map[string]struct{}, error) {
	if len(signature) != 65 {
		return nil, fmt.Errorf("ethrecover: signature must be 65 bytes, got %d", len(signature))
	}

	hash := crypto.Keccak256(message)
	pub, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return nil, fmt.Errorf("ethrecover: recover public key: %w", err)
	}

	addr := crypto.PubkeyToAddress(*pub).Hex()
	return map[string]struct{}{addr: {}}, nil
}
