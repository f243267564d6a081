// Package payload implements the encode/decode contract for the
// polymorphic Payload envelope, dispatching through the PayloadRegistry.
package payload

import (
	"fmt"

	"github.com/certen/period-host/pkg/payloadregistry"
	"github.com/certen/period-host/pkg/wire"
)

// Payload is re-exported from payloadregistry so that callers working
// with the encode/decode contract don't also need to import the registry
// package just to name the type.
type Payload = payloadregistry.Payload

// Encode renders p to its canonical wire form:
// {"transaction_type": tag, "sender": sender, ...data}.
func Encode(p Payload) ([]byte, error) {
	m := wire.Map{
		"transaction_type": wire.String(p.Tag()),
		"sender":           wire.String(p.Sender()),
	}
	for k, v := range p.Data() {
		if k == "transaction_type" || k == "sender" {
			return nil, fmt.Errorf("payload: schema-specific field %q collides with an envelope field", k)
		}
		m[k] = v
	}
	return wire.Encode(m)
}

// Decode reverses Encode: it extracts the transaction_type tag, looks up
// the registered schema, and reconstructs the concrete payload from the
// remaining fields.
func Decode(data []byte) (Payload, error) {
	m, err := wire.Decode(data)
	if err != nil {
		return nil, err
	}

	tag, sender, fields, err := splitEnvelope(m)
	if err != nil {
		return nil, err
	}

	schema, err := payloadregistry.Lookup(tag)
	if err != nil {
		return nil, err
	}

	return schema.New(sender, fields)
}

func splitEnvelope(m wire.Map) (tag, sender string, fields wire.Map, err error) {
	tagValue, ok := m["transaction_type"]
	if !ok {
		return "", "", nil, fmt.Errorf("payload: missing transaction_type field")
	}
	tag, ok = tagValue.AsString()
	if !ok {
		return "", "", nil, fmt.Errorf("payload: transaction_type field is not a string")
	}

	senderValue, ok := m["sender"]
	if !ok {
		return "", "", nil, fmt.Errorf("payload: missing sender field")
	}
	sender, ok = senderValue.AsString()
	if !ok {
		return "", "", nil, fmt.Errorf("payload: sender field is not a string")
	}

	fields = make(wire.Map, len(m))
	for k, v := range m {
		if k == "transaction_type" || k == "sender" {
			continue
		}
		fields[k] = v
	}
	return tag, sender, fields, nil
}

// Equal reports whether two payloads are structurally equal over
// (sender, tag, data).
func Equal(a, b Payload) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Sender() != b.Sender() || a.Tag() != b.Tag() {
		return false
	}
	return a.Data().Equal(b.Data())
}
