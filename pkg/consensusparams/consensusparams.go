// Package consensusparams holds the immutable configuration rounds
// consult to derive supermajority thresholds.
package consensusparams

import (
	"fmt"

	"github.com/certen/period-host/pkg/wire"
)

// ConsensusParams is immutable after construction.
type ConsensusParams struct {
	maxParticipants int64
}

// New constructs ConsensusParams for maxParticipants. maxParticipants
// must be non-negative.
func New(maxParticipants int64) (ConsensusParams, error) {
	if maxParticipants < 0 {
		return ConsensusParams{}, fmt.Errorf("consensusparams: max_participants must be non-negative, got %d", maxParticipants)
	}
	return ConsensusParams{maxParticipants: maxParticipants}, nil
}

// FromMap parses a wire.Map, enforcing that max_participants is present
// and a non-negative integer.
func FromMap(m wire.Map) (ConsensusParams, error) {
	v, ok := m["max_participants"]
	if !ok {
		return ConsensusParams{}, fmt.Errorf("consensusparams: missing max_participants field")
	}
	n, ok := v.AsInt()
	if !ok {
		return ConsensusParams{}, fmt.Errorf("consensusparams: max_participants field is not an integer")
	}
	return New(n)
}

// MaxParticipants returns the configured participant count.
func (c ConsensusParams) MaxParticipants() int64 { return c.maxParticipants }

// TwoThirdsThreshold returns ceil(2 * max_participants / 3), the
// supermajority count for this many participants.
func (c ConsensusParams) TwoThirdsThreshold() int64 {
	return (2*c.maxParticipants + 2) / 3
}
