// Package tx implements Transaction: a Payload plus the signature its
// sender produced over the payload's encoded bytes.
package tx

import (
	"errors"
	"fmt"

	"github.com/certen/period-host/pkg/ledger"
	"github.com/certen/period-host/pkg/payload"
	"github.com/certen/period-host/pkg/wire"
)

// ErrInvalidSignature is returned by Verify when the payload's sender is
// not among the addresses recovered for (bytes, signature).
var ErrInvalidSignature = errors.New("tx: invalid signature")

// Transaction wraps a Payload and the signature its sender produced over
// payload.Encode(). It is immutable after construction.
type Transaction struct {
	Payload   payload.Payload
	Signature []byte
}

// New builds a Transaction. It does not verify the signature; call
// Verify for that.
func New(p payload.Payload, signature []byte) Transaction {
	return Transaction{Payload: p, Signature: append([]byte(nil), signature...)}
}

// Encode renders the transaction to its canonical wire form:
// {"payload": <payload-map>, "signature": <bytes>}.
func (t Transaction) Encode() ([]byte, error) {
	payloadBytes, err := payload.Encode(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("tx: encode payload: %w", err)
	}
	payloadMap, err := wire.Decode(payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("tx: re-decode payload for envelope: %w", err)
	}
	m := wire.Map{
		"payload":   wire.MapValue(payloadMap),
		"signature": wire.Bytes(t.Signature),
	}
	return wire.Encode(m)
}

// Decode reverses Encode, reconstructing the inner Payload via the
// PayloadRegistry.
func Decode(data []byte) (Transaction, error) {
	m, err := wire.Decode(data)
	if err != nil {
		return Transaction{}, err
	}

	payloadValue, ok := m["payload"]
	if !ok {
		return Transaction{}, fmt.Errorf("tx: missing payload field")
	}
	payloadMap, ok := payloadValue.AsMap()
	if !ok {
		return Transaction{}, fmt.Errorf("tx: payload field is not a map")
	}
	payloadBytes, err := wire.Encode(payloadMap)
	if err != nil {
		return Transaction{}, fmt.Errorf("tx: re-encode payload: %w", err)
	}
	p, err := payload.Decode(payloadBytes)
	if err != nil {
		return Transaction{}, fmt.Errorf("tx: decode payload: %w", err)
	}

	sigValue, ok := m["signature"]
	if !ok {
		return Transaction{}, fmt.Errorf("tx: missing signature field")
	}
	sig, ok := sigValue.AsBytes()
	if !ok {
		return Transaction{}, fmt.Errorf("tx: signature field is not bytes")
	}

	return Transaction{Payload: p, Signature: sig}, nil
}

// Verify recomputes payload.Encode(), asks the ledger registry to recover
// addresses for (bytes, signature) under ledgerID, and fails with
// ErrInvalidSignature if the payload's sender is not among them.
func (t Transaction) Verify(registry *ledger.Registry, ledgerID string) error {
	payloadBytes, err := payload.Encode(t.Payload)
	if err != nil {
		return fmt.Errorf("tx: encode payload: %w", err)
	}

	addrs, err := registry.RecoverAddresses(ledgerID, payloadBytes, t.Signature)
	if err != nil {
		return fmt.Errorf("tx: recover addresses: %w", err)
	}

	if _, ok := addrs[t.Payload.Sender()]; !ok {
		return fmt.Errorf("%w: sender %q not among recovered addresses (ledger %q)", ErrInvalidSignature, t.Payload.Sender(), ledgerID)
	}
	return nil
}

// Equal reports whether two transactions are structurally equal.
func (t Transaction) Equal(other Transaction) bool {
	if !payload.Equal(t.Payload, other.Payload) {
		return false
	}
	if len(t.Signature) != len(other.Signature) {
		return false
	}
	for i := range t.Signature {
		if t.Signature[i] != other.Signature[i] {
			return false
		}
	}
	return true
}
