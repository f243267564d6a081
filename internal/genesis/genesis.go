// Package genesis loads the static list of known participants a
// period-host process starts with: their ledger addresses and, for
// validators, the Ed25519 and BLS public keys needed to verify
// transactions and round-result attestations.
package genesis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/certen/period-host/pkg/crypto/bls"
)

// Participant is one entry in the genesis file.
type Participant struct {
	Address      string `yaml:"address"`
	Ed25519Pub   string `yaml:"ed25519_pub_hex"`
	BLSPublicKey string `yaml:"bls_pub_hex"`
}

// Doc is the top-level shape of a genesis participants file.
type Doc struct {
	ChainID      string        `yaml:"chain_id"`
	Participants []Participant `yaml:"participants"`
}

// Load reads and parses the genesis participants file at path.
func Load(path string) (*Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var doc Doc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	if len(doc.Participants) == 0 {
		return nil, fmt.Errorf("genesis: %s lists no participants", path)
	}
	return &doc, nil
}

// Addresses returns the set of every participant's address.
func (d *Doc) Addresses() map[string]struct{} {
	out := make(map[string]struct{}, len(d.Participants))
	for _, p := range d.Participants {
		out[p.Address] = struct{}{}
	}
	return out
}

// BLSValidatorSet decodes every participant's BLS public key, keyed by
// address, for use with pkg/attest. Each key is checked against the
// G2 subgroup before being trusted, rejecting a malformed or
// adversarially chosen genesis entry rather than letting it reach
// attest.Collector.
func (d *Doc) BLSValidatorSet() (map[string]*bls.PublicKey, error) {
	out := make(map[string]*bls.PublicKey, len(d.Participants))
	for _, p := range d.Participants {
		if p.BLSPublicKey == "" {
			continue
		}
		pub, err := bls.PublicKeyFromHex(p.BLSPublicKey)
		if err != nil {
			return nil, fmt.Errorf("genesis: participant %s: decode bls pubkey: %w", p.Address, err)
		}
		if err := bls.ValidateBLSPublicKeySubgroup(pub.Bytes()); err != nil {
			return nil, fmt.Errorf("genesis: participant %s: bls pubkey: %w", p.Address, err)
		}
		out[p.Address] = pub
	}
	return out, nil
}
