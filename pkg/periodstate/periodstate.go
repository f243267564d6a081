// Package periodstate implements BasePeriodState: the replicated,
// round-visible state snapshot, and the immutable-update mechanism
// concrete states share regardless of which fields they add.
package periodstate

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrStateFieldUnset is returned when a field is read before it has ever
// been set.
var ErrStateFieldUnset = errors.New("periodstate: field read before being set")

// ErrNoSuchField is returned by Update when an override names a field
// the concrete state does not have. The source's reflection-based update
// silently ignores this; the stricter reading enforces it instead.
var ErrNoSuchField = errors.New("periodstate: update: no such field")

// ParticipantSet is the unordered set of participant addresses
// authorised to submit transactions in the current period.
type ParticipantSet map[string]struct{}

// NewParticipantSet builds a ParticipantSet from the given addresses.
func NewParticipantSet(addrs ...string) ParticipantSet {
	s := make(ParticipantSet, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

// Base is the state every concrete period state embeds. A nil
// Participants means "not yet initialised" — reading it through
// ParticipantsOrErr() then fails with ErrStateFieldUnset.
type Base struct {
	Participants ParticipantSet
}

// NewBase constructs a Base with participants set. participants must be
// non-empty.
func NewBase(participants ParticipantSet) (Base, error) {
	if len(participants) == 0 {
		return Base{}, fmt.Errorf("periodstate: participants must be non-empty")
	}
	return Base{Participants: participants}, nil
}

// ParticipantsOrErr returns the participant set, or ErrStateFieldUnset if
// it was never initialised.
func (b Base) ParticipantsOrErr() (ParticipantSet, error) {
	if b.Participants == nil {
		return nil, ErrStateFieldUnset
	}
	return b.Participants, nil
}

// Update returns a fresh copy of s with the named fields in overrides
// replaced, leaving every other field — including any a concrete state
// adds beyond Base — untouched. Because it copies s by value and uses
// reflection only to set the overridden fields by name, adding a field
// to a concrete state requires no change to Update itself.
func Update[S any](s S, overrides map[string]any) (S, error) {
	out := s
	v := reflect.ValueOf(&out).Elem()

	for name, val := range overrides {
		field := v.FieldByName(name)
		if !field.IsValid() {
			return s, fmt.Errorf("%w: %q", ErrNoSuchField, name)
		}
		if !field.CanSet() {
			return s, fmt.Errorf("periodstate: update: field %q cannot be set", name)
		}

		rv := reflect.ValueOf(val)
		if val == nil {
			rv = reflect.Zero(field.Type())
		} else if !rv.Type().AssignableTo(field.Type()) {
			return s, fmt.Errorf("periodstate: update: field %q: cannot assign %T to %s", name, val, field.Type())
		}
		field.Set(rv)
	}

	return out, nil
}

// Strict wraps a value that must be explicitly set before it can be
// read, giving concrete states a construction-time-enforced alternative
// to a nullable field that panics on access.
type Strict[T any] struct {
	value T
	set   bool
}

// SetStrict returns a Strict[T] holding v as already set.
func SetStrict[T any](v T) Strict[T] {
	return Strict[T]{value: v, set: true}
}

// Get returns the wrapped value, or ErrStateFieldUnset if it was never
// set.
func (s Strict[T]) Get() (T, error) {
	if !s.set {
		var zero T
		return zero, ErrStateFieldUnset
	}
	return s.value, nil
}

// IsSet reports whether the value has been set.
func (s Strict[T]) IsSet() bool { return s.set }
