// Package attest builds a validator-set aggregate attestation over a
// round result: each validator signs the result's canonical encoding
// with BLS12-381, and once enough distinct signers are collected the
// package aggregates them into a single signature a third party can
// verify against the known validator set without replaying consensus.
package attest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/certen/period-host/pkg/crypto/bls"
	"github.com/certen/period-host/pkg/wire"
)

// ErrAlreadySigned is returned when the same validator attempts to add
// a second attestation to a Collector for the same result.
var ErrAlreadySigned = errors.New("attest: validator already attested")

// ErrUnknownValidator is returned when a signature is added for a
// validator not present in the collector's validator set.
var ErrUnknownValidator = errors.New("attest: validator not in validator set")

// ErrInvalidSignature is returned when a validator's BLS signature
// does not verify against its public key and the result message.
var ErrInvalidSignature = errors.New("attest: signature does not verify")

// ErrThresholdNotMet is returned by Finalize when fewer than the
// required number of distinct validators have attested.
var ErrThresholdNotMet = errors.New("attest: threshold not met")

// Message canonicalises a round result into the byte string validators
// sign over.
func Message(roundID string, result wire.Map) ([]byte, error) {
	m := wire.Map{
		"round_id": wire.String(roundID),
		"result":   wire.MapValue(result),
	}
	encoded, err := wire.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("attest: encode message: %w", err)
	}
	return encoded, nil
}

// EncodeResult converts a terminated round's opaque Outcome.Result
// into the wire.Map Message signs over. Round results in this repo
// are plain Go maps rather than wire.Map themselves, since a round's
// Apply handlers work against ordinary Go types; this is the one
// place that boundary gets crossed before a result is attested.
func EncodeResult(result any) (wire.Map, error) {
	switch v := result.(type) {
	case wire.Map:
		return v, nil
	case map[string][]byte:
		m := make(wire.Map, len(v))
		for k, b := range v {
			m[k] = wire.Bytes(b)
		}
		return m, nil
	case map[string]string:
		m := make(wire.Map, len(v))
		for k, s := range v {
			m[k] = wire.String(s)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("attest: cannot encode result of type %T", result)
	}
}

// Attestation is the final artifact: an aggregate BLS signature plus
// the sorted list of validator addresses that contributed to it.
type Attestation struct {
	RoundID   string
	Message   []byte
	Signers   []string
	Aggregate *bls.Signature
}

// Collector accumulates individual validator signatures over a single
// round result until a supermajority has signed.
type Collector struct {
	roundID   string
	message   []byte
	threshold int64

	validators map[string]*bls.PublicKey
	signatures map[string]*bls.Signature
}

// NewCollector builds a Collector for roundID/result, requiring at
// least threshold distinct signatures (typically
// consensusparams.ConsensusParams.TwoThirdsThreshold) before Finalize
// succeeds. validators maps validator address to its BLS public key.
func NewCollector(roundID string, result wire.Map, threshold int64, validators map[string]*bls.PublicKey) (*Collector, error) {
	message, err := Message(roundID, result)
	if err != nil {
		return nil, err
	}
	return &Collector{
		roundID:    roundID,
		message:    message,
		threshold:  threshold,
		validators: validators,
		signatures: make(map[string]*bls.Signature),
	}, nil
}

// Add verifies sig against the named validator's public key and the
// collector's message, then records it. Adding a second signature for
// an already-seen validator is an error, not a silent overwrite. sig
// is checked against the G1 subgroup before the pairing check runs,
// so a share on an invalid curve point is rejected outright rather
// than fed into PairingCheck.
func (c *Collector) Add(validator string, sig *bls.Signature) error {
	pub, ok := c.validators[validator]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownValidator, validator)
	}
	if _, ok := c.signatures[validator]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadySigned, validator)
	}
	if err := bls.ValidateBLSSignatureSubgroup(sig.Bytes()); err != nil {
		return fmt.Errorf("%w: validator %q: %v", ErrInvalidSignature, validator, err)
	}
	if !pub.VerifyWithDomain(sig, c.message, bls.DomainResult) {
		return fmt.Errorf("%w: validator %q", ErrInvalidSignature, validator)
	}
	c.signatures[validator] = sig
	return nil
}

// Count returns the number of distinct validators that have attested
// so far.
func (c *Collector) Count() int {
	return len(c.signatures)
}

// Finalize aggregates every collected signature into a single
// Attestation. It fails with ErrThresholdNotMet if fewer than the
// collector's threshold have signed.
func (c *Collector) Finalize() (*Attestation, error) {
	if int64(len(c.signatures)) < c.threshold {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrThresholdNotMet, len(c.signatures), c.threshold)
	}

	signers := make([]string, 0, len(c.signatures))
	for v := range c.signatures {
		signers = append(signers, v)
	}
	sort.Strings(signers)

	sigs := make([]*bls.Signature, 0, len(signers))
	for _, v := range signers {
		sigs = append(sigs, c.signatures[v])
	}
	agg, err := bls.AggregateSignatures(sigs)
	if err != nil {
		return nil, fmt.Errorf("attest: aggregate: %w", err)
	}

	return &Attestation{
		RoundID:   c.roundID,
		Message:   c.message,
		Signers:   signers,
		Aggregate: agg,
	}, nil
}

// Verify checks att's aggregate signature against the public keys of
// its listed signers, which must all belong to validators.
func Verify(att *Attestation, validators map[string]*bls.PublicKey) error {
	pubs := make([]*bls.PublicKey, 0, len(att.Signers))
	for _, v := range att.Signers {
		pub, ok := validators[v]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownValidator, v)
		}
		pubs = append(pubs, pub)
	}
	if !bls.VerifyAggregateSignatureWithDomain(att.Aggregate, pubs, att.Message, bls.DomainResult) {
		return fmt.Errorf("attest: %w", ErrInvalidSignature)
	}
	return nil
}
