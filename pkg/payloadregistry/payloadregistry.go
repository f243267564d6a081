// Package payloadregistry holds the process-wide mapping from a payload's
// transaction_type tag to the schema that can reconstruct it. Concrete
// applications call Register once per schema at program initialisation;
// there is no deregistration.
package payloadregistry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/certen/period-host/pkg/wire"
)

// ErrDuplicateTag is returned when a tag is registered to a schema other
// than the one it is already bound to.
var ErrDuplicateTag = errors.New("payloadregistry: tag already bound to a different schema")

// ErrUnknownTag is returned by Lookup when no schema is bound to the tag.
var ErrUnknownTag = errors.New("payloadregistry: unknown tag")

// Payload is the abstract, polymorphic envelope carried by a Transaction:
// a sender plus schema-specific named fields.
type Payload interface {
	// Sender returns the ledger address that authored this payload.
	Sender() string
	// Tag returns the transaction_type this payload was registered under.
	Tag() string
	// Data returns exactly the schema-specific fields such that
	// Schema.New(Sender(), Data()) reconstructs an equal payload.
	Data() wire.Map
}

// Schema constructs a concrete Payload from a sender and its decoded
// schema-specific fields.
type Schema interface {
	New(sender string, data wire.Map) (Payload, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Schema{}
)

// Register binds tag to schema. Binding the same tag to the same schema
// is idempotent; binding it to a different schema fails with
// ErrDuplicateTag.
func Register(tag string, schema Schema) error {
	mu.Lock()
	defer mu.Unlock()

	existing, ok := registry[tag]
	if ok && existing != schema {
		return fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
	}
	registry[tag] = schema
	return nil
}

// Lookup returns the schema bound to tag, or ErrUnknownTag if none is
// registered.
func Lookup(tag string) (Schema, error) {
	mu.RLock()
	defer mu.RUnlock()

	schema, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return schema, nil
}
