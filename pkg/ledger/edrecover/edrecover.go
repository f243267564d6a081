// Package edrecover implements ledger.Recoverer for Ed25519-signed
// messages. Ed25519 signatures carry no public key recovery information,
// so verification checks the signature against every enrolled public
// key and returns the addresses of the ones that match.
package edrecover

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"
)

// Recoverer verifies Ed25519 signatures against a set of enrolled
// participant public keys.
type Recoverer struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// New returns an empty Recoverer; participants must be Enroll-ed before
// their signatures can be recovered.
func New() *Recoverer {
	return &Recoverer{keys: make(map[string]ed25519.PublicKey)}
}

// Enroll associates address with pub, so future signatures verifying
// under pub recover to address.
func (r *Recoverer) Enroll(address string, pub ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[address] = pub
}

// RecoverAddresses returns the addresses of every enrolled public key
// that verifies signature over message.
func (r *Recoverer) RecoverAddresses(message, signature []byte) (map[string]struct{}, error) {
	if len(signature) != ed25519.SignatureSize {
		return nil, fmt.Errorf("edrecover: signature must be %d bytes, got %d", ed25519.SignatureSize, len(signature))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]struct{})
	for addr, pub := range r.keys {
		if ed25519.Verify(pub, message, signature) {
			result[addr] = struct{}{}
		}
	}
	return result, nil
}

// AddressFromPublicKey derives the canonical address string for a public
// key: its lowercase hex encoding.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}
