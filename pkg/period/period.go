// Package period implements the Period controller: the outermost state
// machine driven by the four ABCI-shaped lifecycle entry points, owning
// the blockchain, the in-flight block builder, the active round, and the
// history of past rounds and their results.
package period

import (
	"errors"
	"fmt"

	"github.com/certen/period-host/pkg/chain"
	"github.com/certen/period-host/pkg/round"
	"github.com/certen/period-host/pkg/tx"
)

// Phase is the Period's three-valued block-construction state.
type Phase int

const (
	WaitingForBeginBlock Phase = iota
	WaitingForDeliverTx
	WaitingForCommit
)

func (p Phase) String() string {
	switch p {
	case WaitingForBeginBlock:
		return "WAITING_FOR_BEGIN_BLOCK"
	case WaitingForDeliverTx:
		return "WAITING_FOR_DELIVER_TX"
	case WaitingForCommit:
		return "WAITING_FOR_COMMIT"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Entry names one of the four ABCI-shaped lifecycle entry points.
type Entry string

const (
	EntryBeginBlock Entry = "begin_block"
	EntryDeliverTx  Entry = "deliver_tx"
	EntryEndBlock   Entry = "end_block"
	EntryCommit     Entry = "commit"
)

// ErrPhaseMismatch is returned when an entry point is invoked from a
// phase it isn't admissible in.
var ErrPhaseMismatch = errors.New("period: phase mismatch")

// ErrPeriodFinished is returned by BeginBlock once the period has
// terminated.
var ErrPeriodFinished = errors.New("period: finished")

// ErrEndBlockCalledTwice guards against the round's EndBlock being
// invoked more than once for the same block. The phase table already
// makes this unreachable through the normal entry points, but the
// check is kept as a loud, explicit invariant rather than relying
// solely on that structural accident.
var ErrEndBlockCalledTwice = errors.New("period: round end_block already ran for this block")

// TransitionTable maps (phase, entry point) to the phase reached after a
// successful call. An (phase, entry) pair absent from the table means
// that entry point fails with ErrPhaseMismatch from that phase — this
// replaces a chain of hand-written phase checks with one data table the
// admissibility rules in spec §4.9 can be read straight off of.
type TransitionTable map[Phase]map[Entry]Phase

// DefaultTransitionTable returns the transition table matching spec §4.9:
// begin_block only from WAITING_FOR_BEGIN_BLOCK, deliver_tx/end_block
// only from WAITING_FOR_DELIVER_TX, commit only from WAITING_FOR_COMMIT.
func DefaultTransitionTable() TransitionTable {
	return TransitionTable{
		WaitingForBeginBlock: {
			EntryBeginBlock: WaitingForDeliverTx,
		},
		WaitingForDeliverTx: {
			EntryDeliverTx: WaitingForDeliverTx,
			EntryEndBlock:  WaitingForCommit,
		},
		WaitingForCommit: {
			EntryCommit: WaitingForBeginBlock,
		},
	}
}

func (tt TransitionTable) next(phase Phase, entry Entry) (Phase, error) {
	byEntry, ok := tt[phase]
	if ok {
		if next, ok := byEntry[entry]; ok {
			return next, nil
		}
	}
	return phase, fmt.Errorf("%w: %s called in phase %s", ErrPhaseMismatch, entry, phase)
}

// SuccessionTable names a round's successor by a symbolic transition
// key rather than the round constructing it ad hoc, mirroring the
// original protocol's cross-period transition function narrowly: a
// host may attach one so EndBlock's outcome can reference "the next
// round" by name.
type SuccessionTable map[string]func(result any) round.Round

// ErrUnknownSuccession is the error updateRound panics with when a
// round's Outcome names a NextRoundKey absent from the Period's
// succession table.
var ErrUnknownSuccession = errors.New("period: unknown succession key")

// Period is the outermost controller.
type Period struct {
	transitions TransitionTable
	successions SuccessionTable

	chain   *chain.Blockchain
	builder *chain.Builder

	phase          Phase
	current        round.Round
	finished       bool
	endBlockCalled bool

	previousRounds []round.Round
	roundResults   []any
}

// New constructs a Period starting in WAITING_FOR_BEGIN_BLOCK with
// initial as its active round.
func New(initial round.Round) *Period {
	return &Period{
		transitions: DefaultTransitionTable(),
		chain:       chain.NewBlockchain(),
		builder:     chain.NewBuilder(),
		phase:       WaitingForBeginBlock,
		current:     initial,
	}
}

// WithSuccessionTable attaches a SuccessionTable a round's Outcome may
// reference by NextRoundKey instead of constructing its successor
// directly.
func (p *Period) WithSuccessionTable(table SuccessionTable) *Period {
	p.successions = table
	return p
}

// Phase returns the period's current block-construction phase.
func (p *Period) Phase() Phase { return p.phase }

// IsFinished reports whether the period has terminated: its current
// round's EndBlock yielded a nil successor.
func (p *Period) IsFinished() bool { return p.finished }

// CurrentRound returns the active round, or nil if the period has
// finished.
func (p *Period) CurrentRound() round.Round { return p.current }

// Chain returns the period's blockchain.
func (p *Period) Chain() *chain.Blockchain { return p.chain }

// PreviousRounds returns every round that has terminated so far, in
// termination order.
func (p *Period) PreviousRounds() []round.Round { return p.previousRounds }

// RoundResults returns the opaque result produced by each terminated
// round, in the same order as PreviousRounds.
func (p *Period) RoundResults() []any { return p.roundResults }

// BeginBlock starts construction of a new block. It fails with
// ErrPeriodFinished if the period has terminated, or ErrPhaseMismatch if
// called outside WAITING_FOR_BEGIN_BLOCK.
func (p *Period) BeginBlock(header chain.Header) error {
	if p.finished {
		return fmt.Errorf("%w: begin_block called after period finished", ErrPeriodFinished)
	}
	next, err := p.transitions.next(p.phase, EntryBeginBlock)
	if err != nil {
		return err
	}

	p.builder.Reset()
	if err := p.builder.SetHeader(header); err != nil {
		return fmt.Errorf("period: begin_block: %w", err)
	}
	p.endBlockCalled = false
	p.phase = next
	return nil
}

// DeliverTx routes tx through the active round's check/process pair. It
// returns whether the transaction was valid; an invalid transaction is
// dropped silently (never applied, never added to the block).
//
// If CheckTransaction and ProcessTransaction disagree — the at-most-one-
// application rule from spec §4.9 — that is a programming error in the
// round implementation, not a recoverable condition, and DeliverTx
// panics rather than silently admitting an inconsistent block.
func (p *Period) DeliverTx(t tx.Transaction) (bool, error) {
	if _, err := p.transitions.next(p.phase, EntryDeliverTx); err != nil {
		return false, err
	}

	valid := p.current.CheckTransaction(t)
	if !valid {
		return false, nil
	}

	if err := p.current.ProcessTransaction(t); err != nil {
		panic(fmt.Sprintf("period: round %q: process_transaction rejected a transaction check_transaction had accepted: %v", p.current.RoundID(), err))
	}
	p.builder.AddTransaction(t)
	return true, nil
}

// EndBlock closes the block to further transactions, moving the period
// into WAITING_FOR_COMMIT.
func (p *Period) EndBlock() error {
	next, err := p.transitions.next(p.phase, EntryEndBlock)
	if err != nil {
		return err
	}
	p.phase = next
	return nil
}

// Commit finalises the in-flight block onto the chain and runs
// updateRound. If chain.AddBlock fails, the failure is propagated
// verbatim and the phase is NOT advanced — the atomicity requirement
// from spec §4.9 — so the host is forced to observe the inconsistency
// rather than silently resetting to WAITING_FOR_BEGIN_BLOCK.
func (p *Period) Commit() error {
	next, err := p.transitions.next(p.phase, EntryCommit)
	if err != nil {
		return err
	}

	block, err := p.builder.GetBlock()
	if err != nil {
		return fmt.Errorf("period: commit: %w", err)
	}
	if err := p.chain.AddBlock(block); err != nil {
		return err
	}

	p.updateRound()
	p.phase = next
	return nil
}

// updateRound is the Period's reaction to a committed block: it invokes
// EndBlock on the current round exactly once. If the round is not yet
// done, the current round is kept; otherwise the round and its result
// are pushed onto history and the yielded successor becomes current. A
// nil successor finishes the period.
func (p *Period) updateRound() {
	if p.endBlockCalled {
		panic(fmt.Sprintf("period: round %q: %v", p.current.RoundID(), ErrEndBlockCalledTwice))
	}
	p.endBlockCalled = true

	outcome, err := p.current.EndBlock()
	if err != nil {
		panic(fmt.Sprintf("period: round %q: end_block failed: %v", p.current.RoundID(), err))
	}
	if outcome == nil {
		return
	}

	p.previousRounds = append(p.previousRounds, p.current)
	p.roundResults = append(p.roundResults, outcome.Result)

	if outcome.NextRound != nil {
		p.current = outcome.NextRound
		return
	}

	if outcome.NextRoundKey != "" {
		finishedRound := p.previousRounds[len(p.previousRounds)-1]
		fn, ok := p.successions[outcome.NextRoundKey]
		if !ok {
			panic(fmt.Sprintf("period: round %q: %v: %q", finishedRound.RoundID(), ErrUnknownSuccession, outcome.NextRoundKey))
		}
		p.current = fn(outcome.Result)
		return
	}

	p.finished = true
	p.current = nil
}
