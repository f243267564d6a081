// Tests for BLS12-381 signing, verification, aggregation, and the
// subgroup validation attest.Collector relies on.

package bls

import (
	"bytes"
	"testing"
)

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Failed to initialize BLS: %v", err)
	}
	// Safe to call multiple times
	if err := Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
}

func TestGenerateKeyPair(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	if len(sk.Bytes()) != PrivateKeySize {
		t.Errorf("invalid private key size: got %d, want %d", len(sk.Bytes()), PrivateKeySize)
	}
	if len(pk.Bytes()) != PublicKeySize {
		t.Errorf("invalid public key size: got %d, want %d", len(pk.Bytes()), PublicKeySize)
	}
}

func TestGenerateKeyPairFromSeed(t *testing.T) {
	seed := []byte("this is a test seed for BLS key generation - 32+ bytes required")

	sk1, pk1, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("Failed to generate key pair from seed: %v", err)
	}
	sk2, pk2, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("Failed to generate second key pair from seed: %v", err)
	}

	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) {
		t.Error("same seed produced different private keys")
	}
	if !pk1.Equal(pk2) {
		t.Error("same seed produced different public keys")
	}

	if _, _, err := GenerateKeyPairFromSeed([]byte("too short")); err == nil {
		t.Error("expected an error for a seed under 32 bytes")
	}
}

func TestSignAndVerify(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	message := []byte("Hello, period-host!")
	sig := sk.Sign(message)
	if len(sig.Bytes()) != SignatureSize {
		t.Errorf("invalid signature size: got %d, want %d", len(sig.Bytes()), SignatureSize)
	}
	if !pk.Verify(sig, message) {
		t.Error("valid signature failed to verify")
	}
	if pk.Verify(sig, []byte("wrong message")) {
		t.Error("verification succeeded with the wrong message")
	}
}

func TestSignWithDomain(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	message := []byte("Test message")
	sig := sk.SignWithDomain(message, DomainAttestation)

	if !pk.VerifyWithDomain(sig, message, DomainAttestation) {
		t.Error("domain-separated verification failed")
	}
	if pk.VerifyWithDomain(sig, message, DomainResult) {
		t.Error("verification succeeded against a different domain tag")
	}
}

func TestSerializationRoundtrip(t *testing.T) {
	sk1, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	sk2, err := PrivateKeyFromBytes(sk1.Bytes())
	if err != nil {
		t.Fatalf("Failed to deserialize private key: %v", err)
	}
	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) {
		t.Error("private key serialization roundtrip failed")
	}

	pk1 := sk1.PublicKey()
	pk2, err := PublicKeyFromBytes(pk1.Bytes())
	if err != nil {
		t.Fatalf("Failed to deserialize public key: %v", err)
	}
	if !pk1.Equal(pk2) {
		t.Error("public key serialization roundtrip failed")
	}

	pk3, err := PublicKeyFromHex(pk1.Hex())
	if err != nil {
		t.Fatalf("Failed to deserialize public key from hex: %v", err)
	}
	if !pk1.Equal(pk3) {
		t.Error("public key hex roundtrip failed")
	}
}

func TestAggregateSignatures(t *testing.T) {
	const numSigners = 5
	privateKeys := make([]*PrivateKey, numSigners)
	publicKeys := make([]*PublicKey, numSigners)
	signatures := make([]*Signature, numSigners)

	message := []byte("This is a message for aggregate signature testing")
	for i := 0; i < numSigners; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("Failed to generate key pair %d: %v", i, err)
		}
		privateKeys[i], publicKeys[i] = sk, pk
		signatures[i] = sk.Sign(message)
	}

	aggSig, err := AggregateSignatures(signatures)
	if err != nil {
		t.Fatalf("Failed to aggregate signatures: %v", err)
	}
	if !VerifyAggregateSignature(aggSig, publicKeys, message) {
		t.Error("aggregate signature verification failed")
	}
	if VerifyAggregateSignature(aggSig, publicKeys, []byte("wrong message")) {
		t.Error("aggregate verification succeeded with the wrong message")
	}
}

func TestAggregatePublicKeys(t *testing.T) {
	const numKeys = 3
	publicKeys := make([]*PublicKey, numKeys)
	for i := 0; i < numKeys; i++ {
		_, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("Failed to generate key pair %d: %v", i, err)
		}
		publicKeys[i] = pk
	}

	aggPk, err := AggregatePublicKeys(publicKeys)
	if err != nil {
		t.Fatalf("Failed to aggregate public keys: %v", err)
	}
	if len(aggPk.Bytes()) != PublicKeySize {
		t.Errorf("invalid aggregate public key size: got %d, want %d", len(aggPk.Bytes()), PublicKeySize)
	}
}

func TestEmptyAggregationRejected(t *testing.T) {
	if _, err := AggregateSignatures(nil); err == nil {
		t.Error("expected an error aggregating zero signatures")
	}
	if _, err := AggregatePublicKeys(nil); err == nil {
		t.Error("expected an error aggregating zero public keys")
	}
}

func TestVerifyAggregateSignatureWithDomain(t *testing.T) {
	const numSigners = 3
	publicKeys := make([]*PublicKey, numSigners)
	signatures := make([]*Signature, numSigners)
	message := []byte("domain-separated aggregate message")

	for i := 0; i < numSigners; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("Failed to generate key pair %d: %v", i, err)
		}
		publicKeys[i] = pk
		signatures[i] = sk.SignWithDomain(message, DomainResult)
	}

	aggSig, err := AggregateSignatures(signatures)
	if err != nil {
		t.Fatalf("Failed to aggregate signatures: %v", err)
	}
	if !VerifyAggregateSignatureWithDomain(aggSig, publicKeys, message, DomainResult) {
		t.Error("domain-separated aggregate verification failed")
	}
	if VerifyAggregateSignatureWithDomain(aggSig, publicKeys, message, DomainAttestation) {
		t.Error("verification succeeded against the wrong domain tag")
	}
}

func TestValidateBLSPublicKeySubgroup(t *testing.T) {
	_, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	if err := ValidateBLSPublicKeySubgroup(pk.Bytes()); err != nil {
		t.Errorf("expected a freshly generated public key to validate, got: %v", err)
	}
	if err := ValidateBLSPublicKeySubgroup([]byte("too short")); err == nil {
		t.Error("expected an undersized public key to be rejected")
	}
}

func TestValidateBLSSignatureSubgroup(t *testing.T) {
	sk, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	sig := sk.Sign([]byte("message"))
	if err := ValidateBLSSignatureSubgroup(sig.Bytes()); err != nil {
		t.Errorf("expected a freshly generated signature to validate, got: %v", err)
	}
	if err := ValidateBLSSignatureSubgroup([]byte("too short")); err == nil {
		t.Error("expected an undersized signature to be rejected")
	}
}

func BenchmarkSign(b *testing.B) {
	sk, _, err := GenerateKeyPair()
	if err != nil {
		b.Fatalf("Failed to generate key pair: %v", err)
	}
	message := []byte("Benchmark message for signing")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sk.Sign(message)
	}
}

func BenchmarkVerifyAggregateSignature(b *testing.B) {
	const numSigners = 100
	publicKeys := make([]*PublicKey, numSigners)
	signatures := make([]*Signature, numSigners)
	message := []byte("Benchmark message for aggregate verification")

	for i := 0; i < numSigners; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			b.Fatalf("Failed to generate key pair: %v", err)
		}
		publicKeys[i] = pk
		signatures[i] = sk.Sign(message)
	}
	aggSig, err := AggregateSignatures(signatures)
	if err != nil {
		b.Fatalf("Failed to aggregate signatures: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		VerifyAggregateSignature(aggSig, publicKeys, message)
	}
}
