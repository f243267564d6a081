package period_test

import (
	"errors"
	"testing"

	"github.com/certen/period-host/pkg/chain"
	"github.com/certen/period-host/pkg/period"
	"github.com/certen/period-host/pkg/round"
	"github.com/certen/period-host/pkg/tx"
	"github.com/certen/period-host/pkg/wire"
)

type stubPayload struct {
	sender string
	tag    string
	ok     bool
}

func (p *stubPayload) Sender() string { return p.sender }
func (p *stubPayload) Tag() string    { return p.tag }
func (p *stubPayload) Data() wire.Map { return wire.Map{"ok": wire.Bool(p.ok)} }

func validTx() tx.Transaction   { return tx.New(&stubPayload{sender: "0xalice", tag: "t", ok: true}, nil) }
func invalidTx() tx.Transaction { return tx.New(&stubPayload{sender: "0xbob", tag: "t", ok: false}, nil) }

// stubRound accepts transactions whose payload says ok=true, and reports
// termination (with a configurable successor) once terminateAfter
// transactions have been applied.
type stubRound struct {
	id             string
	applied        int
	terminateAfter int
	result         any
	successor      round.Round
}

func (r *stubRound) RoundID() string { return r.id }
func (r *stubRound) CheckTransaction(t tx.Transaction) bool {
	p, ok := t.Payload.(*stubPayload)
	return ok && p.ok
}
func (r *stubRound) ProcessTransaction(t tx.Transaction) error {
	if !r.CheckTransaction(t) {
		return round.ErrTransactionNotValid
	}
	r.applied++
	return nil
}
func (r *stubRound) EndBlock() (*round.Outcome, error) {
	if r.terminateAfter == 0 || r.applied < r.terminateAfter {
		return nil, nil
	}
	return &round.Outcome{Result: r.result, NextRound: r.successor}, nil
}

func TestLinearPeriodSingleRound(t *testing.T) {
	r := &stubRound{id: "r1"}
	p := period.New(r)

	if err := p.BeginBlock(chain.Header{Height: 1}); err != nil {
		t.Fatalf("BeginBlock: %v", err)
	}

	ok, err := p.DeliverTx(validTx())
	if err != nil || !ok {
		t.Fatalf("DeliverTx(valid) = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = p.DeliverTx(invalidTx())
	if err != nil || ok {
		t.Fatalf("DeliverTx(invalid) = (%v, %v), want (false, nil)", ok, err)
	}

	if err := p.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if p.Chain().Length() != 1 {
		t.Fatalf("expected chain length 1, got %d", p.Chain().Length())
	}
	block := p.Chain().Blocks()[0]
	if len(block.Transactions) != 1 {
		t.Fatalf("expected block to contain exactly the valid tx, got %d txs", len(block.Transactions))
	}
	if p.CurrentRound() != round.Round(r) {
		t.Fatal("expected round to continue unchanged when EndBlock returns nil")
	}
}

func TestRoundSuccession(t *testing.T) {
	r2 := &stubRound{id: "r2"}
	r1 := &stubRound{id: "r1", terminateAfter: 1, result: "R", successor: r2}
	p := period.New(r1)

	if err := p.BeginBlock(chain.Header{Height: 1}); err != nil {
		t.Fatalf("BeginBlock: %v", err)
	}
	if _, err := p.DeliverTx(validTx()); err != nil {
		t.Fatalf("DeliverTx: %v", err)
	}
	if err := p.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(p.PreviousRounds()) != 1 || p.PreviousRounds()[0] != round.Round(r1) {
		t.Fatalf("expected previous_rounds == [r1], got %v", p.PreviousRounds())
	}
	if len(p.RoundResults()) != 1 || p.RoundResults()[0] != "R" {
		t.Fatalf("expected round_results == [R], got %v", p.RoundResults())
	}
	if p.CurrentRound() != round.Round(r2) {
		t.Fatal("expected current_round to be r2")
	}
}

func TestPeriodTermination(t *testing.T) {
	r1 := &stubRound{id: "r1", terminateAfter: 1, result: "R", successor: nil}
	p := period.New(r1)

	if err := p.BeginBlock(chain.Header{Height: 1}); err != nil {
		t.Fatalf("BeginBlock: %v", err)
	}
	if _, err := p.DeliverTx(validTx()); err != nil {
		t.Fatalf("DeliverTx: %v", err)
	}
	if err := p.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if !p.IsFinished() {
		t.Fatal("expected period to be finished")
	}
	if err := p.BeginBlock(chain.Header{Height: 2}); !errors.Is(err, period.ErrPeriodFinished) {
		t.Fatalf("expected ErrPeriodFinished, got %v", err)
	}
}

func TestHeightViolation(t *testing.T) {
	r := &stubRound{id: "r1"}
	p := period.New(r)

	if err := p.BeginBlock(chain.Header{Height: 1}); err != nil {
		t.Fatalf("BeginBlock: %v", err)
	}
	if err := p.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := p.BeginBlock(chain.Header{Height: 3}); err != nil {
		t.Fatalf("BeginBlock: %v", err)
	}
	if err := p.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if err := p.Commit(); !errors.Is(err, chain.ErrAddBlock) {
		t.Fatalf("expected ErrAddBlock, got %v", err)
	}
	// Atomicity: a failed commit must not advance the phase.
	if p.Phase() != period.WaitingForCommit {
		t.Fatalf("expected phase to remain WAITING_FOR_COMMIT after a failed commit, got %s", p.Phase())
	}
}

func TestPhaseMismatchMatrix(t *testing.T) {
	newPeriod := func() *period.Period { return period.New(&stubRound{id: "r1"}) }

	calls := map[period.Entry]func(p *period.Period) error{
		period.EntryBeginBlock: func(p *period.Period) error { return p.BeginBlock(chain.Header{Height: 1}) },
		period.EntryDeliverTx:  func(p *period.Period) error { _, err := p.DeliverTx(validTx()); return err },
		period.EntryEndBlock:   func(p *period.Period) error { return p.EndBlock() },
		period.EntryCommit:     func(p *period.Period) error { return p.Commit() },
	}

	admissible := map[period.Phase]period.Entry{
		period.WaitingForBeginBlock: period.EntryBeginBlock,
		period.WaitingForDeliverTx:  period.EntryEndBlock,
		period.WaitingForCommit:     period.EntryCommit,
	}

	phases := []period.Phase{period.WaitingForBeginBlock, period.WaitingForDeliverTx, period.WaitingForCommit}
	entries := []period.Entry{period.EntryBeginBlock, period.EntryDeliverTx, period.EntryEndBlock, period.EntryCommit}

	failures := 0
	for _, phase := range phases {
		for _, entry := range entries {
			p := newPeriod()
			// Drive p to `phase`.
			switch phase {
			case period.WaitingForDeliverTx:
				if err := p.BeginBlock(chain.Header{Height: 1}); err != nil {
					t.Fatalf("setup BeginBlock: %v", err)
				}
			case period.WaitingForCommit:
				if err := p.BeginBlock(chain.Header{Height: 1}); err != nil {
					t.Fatalf("setup BeginBlock: %v", err)
				}
				if err := p.EndBlock(); err != nil {
					t.Fatalf("setup EndBlock: %v", err)
				}
			}

			err := calls[entry](p)
			// deliver_tx is admissible only from WAITING_FOR_DELIVER_TX
			wantOK := (entry == period.EntryDeliverTx && phase == period.WaitingForDeliverTx) ||
				(entry == admissible[phase])

			if wantOK {
				if err != nil {
					t.Errorf("phase=%s entry=%s: expected success, got %v", phase, entry, err)
				}
			} else {
				if !errors.Is(err, period.ErrPhaseMismatch) {
					t.Errorf("phase=%s entry=%s: expected ErrPhaseMismatch, got %v", phase, entry, err)
				}
				failures++
			}
		}
	}

	// Of the 12 (phase, entry point) combinations, exactly the ones named
	// in the admissibility table succeed; every other combination must
	// fail with ErrPhaseMismatch.
	if failures != len(phases)*len(entries)-4 {
		t.Fatalf("expected %d phase/entry combinations to fail, got %d", len(phases)*len(entries)-4, failures)
	}
}
