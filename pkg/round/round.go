// Package round implements the AbstractRound contract: one step of the
// protocol, dispatching transactions to schema-specific handlers by tag
// rather than by source address or arrival order.
package round

import (
	"errors"
	"fmt"

	"github.com/certen/period-host/pkg/consensusparams"
	"github.com/certen/period-host/pkg/periodstate"
	"github.com/certen/period-host/pkg/tx"
)

// ErrTransactionNotValid is returned by ProcessTransaction when
// CheckTransaction disagrees with an earlier accept decision.
var ErrTransactionNotValid = errors.New("round: transaction not valid")

// ErrUnknownTransactionType is returned by ProcessTransaction when no
// handler is registered for the transaction's tag.
var ErrUnknownTransactionType = errors.New("round: unknown transaction type")

// Outcome is returned by EndBlock when a round has terminated: result is
// opaque to the core, and NextRound becomes the active round. A nil
// NextRound means the period itself terminates, unless NextRoundKey
// names an entry in the Period's succession table.
type Outcome struct {
	Result    any
	NextRound Round

	// NextRoundKey, when NextRound is nil, names a transition the
	// Period's succession table resolves into a concrete Round instead
	// of the round constructing its successor ad hoc. A round that
	// constructs its own successor directly has no use for this field.
	NextRoundKey string
}

// Round is the contract one protocol step implements, occupying one or
// more blocks until EndBlock reports termination.
type Round interface {
	// RoundID identifies this round instance.
	RoundID() string
	// CheckTransaction is a pure predicate against the current period
	// state: it returns false for an unrecognised tag, otherwise
	// delegates to the tag-specific checker.
	CheckTransaction(t tx.Transaction) bool
	// ProcessTransaction re-runs CheckTransaction; if false, it fails
	// with ErrTransactionNotValid (or ErrUnknownTransactionType if no
	// handler exists), otherwise it applies the tag-specific handler,
	// which may update the round's working state.
	ProcessTransaction(t tx.Transaction) error
	// EndBlock is called by the Period at Commit time, after the block
	// has been appended to the chain, at most once per block. A nil
	// Outcome means the round is not yet done.
	EndBlock() (*Outcome, error)
}

// TxHandler is the tag-specific checker/applier pair a Base dispatches
// to. Check must be pure; Apply may mutate the enclosing round's
// working state.
type TxHandler struct {
	Check func(t tx.Transaction) bool
	Apply func(t tx.Transaction) error
}

// Base implements the tag-dispatch half of the AbstractRound contract —
// CheckTransaction and ProcessTransaction — via an explicit tag→handler
// table built at construction time, replacing the check_<tag>/<tag>
// naming-convention lookup with an exhaustive-ish dispatch table.
// Concrete rounds embed Base and supply their own EndBlock. State holds
// the round's reference to the current BasePeriodState: concrete rounds
// that extend periodstate.Base with their own fields keep State.Base in
// sync through periodstate.Update as handlers apply, and a bare round
// with no state beyond the participant set can use it as-is.
type Base struct {
	ID       string
	State    periodstate.Base
	Params   consensusparams.ConsensusParams
	Handlers map[string]TxHandler
}

// RoundID returns the round's identifier.
func (b *Base) RoundID() string { return b.ID }

// Participants returns the round's participant set, or
// periodstate.ErrStateFieldUnset if State was never initialised.
func (b *Base) Participants() (periodstate.ParticipantSet, error) {
	return b.State.ParticipantsOrErr()
}

// CheckTransaction returns false for a tag with no registered handler;
// otherwise it delegates to that handler's Check.
func (b *Base) CheckTransaction(t tx.Transaction) bool {
	h, ok := b.Handlers[t.Payload.Tag()]
	if !ok {
		return false
	}
	return h.Check(t)
}

// ProcessTransaction re-runs CheckTransaction and, if it still holds,
// applies the tag's handler.
func (b *Base) ProcessTransaction(t tx.Transaction) error {
	tag := t.Payload.Tag()
	h, ok := b.Handlers[tag]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransactionType, tag)
	}
	if !h.Check(t) {
		return fmt.Errorf("%w: %q", ErrTransactionNotValid, tag)
	}
	return h.Apply(t)
}
