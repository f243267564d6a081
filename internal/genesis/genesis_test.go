package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/certen/period-host/internal/genesis"
	"github.com/certen/period-host/pkg/crypto/bls"
)

func writeGenesisFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesParticipants(t *testing.T) {
	_, pub, err := bls.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	path := writeGenesisFile(t, `
chain_id: test-chain
participants:
  - address: "0xalice"
    ed25519_pub_hex: "aabbcc"
    bls_pub_hex: "`+pub.Hex()+`"
  - address: "0xbob"
    ed25519_pub_hex: "ddeeff"
`)

	doc, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.ChainID != "test-chain" {
		t.Fatalf("expected chain_id test-chain, got %q", doc.ChainID)
	}
	if len(doc.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(doc.Participants))
	}

	addrs := doc.Addresses()
	if _, ok := addrs["0xalice"]; !ok {
		t.Fatal("expected 0xalice in addresses")
	}
	if _, ok := addrs["0xbob"]; !ok {
		t.Fatal("expected 0xbob in addresses")
	}

	validators, err := doc.BLSValidatorSet()
	if err != nil {
		t.Fatalf("BLSValidatorSet: %v", err)
	}
	if _, ok := validators["0xalice"]; !ok {
		t.Fatal("expected 0xalice to have a decoded BLS key")
	}
	if _, ok := validators["0xbob"]; ok {
		t.Fatal("expected 0xbob, with no bls_pub_hex, to be absent from the validator set")
	}
}

func TestLoadRejectsEmptyParticipants(t *testing.T) {
	path := writeGenesisFile(t, "chain_id: test-chain\nparticipants: []\n")
	if _, err := genesis.Load(path); err == nil {
		t.Fatal("expected an error for a genesis file with no participants")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := genesis.Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("expected an error for a missing genesis file")
	}
}
