// Package exampleprotocol is a minimal two-round commit-reveal
// protocol used only to exercise payload/payloadregistry/round/period
// end-to-end: it is not itself part of the host's public surface.
package exampleprotocol

import (
	"crypto/sha256"
	"errors"

	"github.com/certen/period-host/pkg/consensusparams"
	"github.com/certen/period-host/pkg/payloadregistry"
	"github.com/certen/period-host/pkg/periodstate"
	"github.com/certen/period-host/pkg/round"
	"github.com/certen/period-host/pkg/tx"
	"github.com/certen/period-host/pkg/wire"
)

// CommitTag and RevealTag identify the two payload schemas this
// protocol registers.
const (
	CommitTag = "exampleprotocol.commit.v1"
	RevealTag = "exampleprotocol.reveal.v1"
)

// ErrCommitmentSize is returned when a commit payload's commitment is
// not a 32-byte SHA-256 digest.
var ErrCommitmentSize = errors.New("exampleprotocol: commitment must be 32 bytes")

// CommitPayload commits a participant to a value without revealing it.
type CommitPayload struct {
	sender     string
	Commitment []byte
}

func (p *CommitPayload) Sender() string { return p.sender }
func (p *CommitPayload) Tag() string    { return CommitTag }
func (p *CommitPayload) Data() wire.Map {
	return wire.Map{"commitment": wire.Bytes(p.Commitment)}
}

// NewCommitPayload builds a CommitPayload for sender committing to
// value under salt.
func NewCommitPayload(sender, value string, salt []byte) *CommitPayload {
	return &CommitPayload{sender: sender, Commitment: Hash(value, salt)}
}

type commitSchema struct{}

func (commitSchema) New(sender string, data wire.Map) (payloadregistry.Payload, error) {
	commitment, _ := data["commitment"].AsBytes()
	if len(commitment) != sha256.Size {
		return nil, ErrCommitmentSize
	}
	return &CommitPayload{sender: sender, Commitment: commitment}, nil
}

// RevealPayload reveals the value and salt behind an earlier commitment.
type RevealPayload struct {
	sender string
	Value  string
	Salt   []byte
}

func (p *RevealPayload) Sender() string { return p.sender }
func (p *RevealPayload) Tag() string    { return RevealTag }
func (p *RevealPayload) Data() wire.Map {
	return wire.Map{"value": wire.String(p.Value), "salt": wire.Bytes(p.Salt)}
}

// NewRevealPayload builds a RevealPayload for sender.
func NewRevealPayload(sender, value string, salt []byte) *RevealPayload {
	return &RevealPayload{sender: sender, Value: value, Salt: salt}
}

type revealSchema struct{}

func (revealSchema) New(sender string, data wire.Map) (payloadregistry.Payload, error) {
	value, _ := data["value"].AsString()
	salt, _ := data["salt"].AsBytes()
	return &RevealPayload{sender: sender, Value: value, Salt: salt}, nil
}

func init() {
	if err := payloadregistry.Register(CommitTag, commitSchema{}); err != nil {
		panic(err)
	}
	if err := payloadregistry.Register(RevealTag, revealSchema{}); err != nil {
		panic(err)
	}
}

// Hash computes the commitment for value under salt.
func Hash(value string, salt []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(value))
	sum := h.Sum(nil)
	return sum
}

// RevealRoundKey is the succession key CommitRound's Outcome names;
// a host attaches a period.SuccessionTable mapping this key to a
// closure that builds the next RevealRound from the finished commit
// set.
const RevealRoundKey = "exampleprotocol.reveal"

// commitState is the BasePeriodState concrete commitments are folded
// into: periodstate.Base's participant set plus the commitments
// collected so far, replaced wholesale on every accepted commit via
// periodstate.Update rather than mutated in place.
type commitState struct {
	periodstate.Base
	Commitments map[string][]byte
}

// CommitRound collects one commitment per participant and terminates
// once at least threshold distinct participants have committed.
type CommitRound struct {
	round.Base
	threshold int64
	state     commitState
}

// NewCommitRound builds a CommitRound requiring params.TwoThirdsThreshold
// distinct commitments, from participants, before it terminates.
func NewCommitRound(params consensusparams.ConsensusParams, participants periodstate.ParticipantSet) *CommitRound {
	base, err := periodstate.NewBase(participants)
	if err != nil {
		panic(err)
	}

	r := &CommitRound{
		threshold: params.TwoThirdsThreshold(),
		state:     commitState{Base: base, Commitments: make(map[string][]byte)},
	}
	r.Base = round.Base{
		ID:     "exampleprotocol-commit",
		State:  base,
		Params: params,
		Handlers: map[string]round.TxHandler{
			CommitTag: {
				Check: func(t tx.Transaction) bool {
					p, ok := t.Payload.(*CommitPayload)
					if !ok || len(p.Commitment) != 32 {
						return false
					}
					if _, known := r.state.Participants[p.Sender()]; !known {
						return false
					}
					_, already := r.state.Commitments[p.Sender()]
					return !already
				},
				Apply: func(t tx.Transaction) error {
					p := t.Payload.(*CommitPayload)
					next := make(map[string][]byte, len(r.state.Commitments)+1)
					for k, v := range r.state.Commitments {
						next[k] = v
					}
					next[p.Sender()] = p.Commitment

					updated, err := periodstate.Update(r.state, map[string]any{"Commitments": next})
					if err != nil {
						return err
					}
					r.state = updated
					r.Base.State = updated.Base
					return nil
				},
			},
		},
	}
	return r
}

// EndBlock reports termination once enough participants have
// committed, handing the commitment set to the reveal round via
// NextRoundKey rather than constructing it directly.
func (r *CommitRound) EndBlock() (*round.Outcome, error) {
	if int64(len(r.state.Commitments)) < r.threshold {
		return nil, nil
	}
	result := make(map[string][]byte, len(r.state.Commitments))
	for k, v := range r.state.Commitments {
		result[k] = v
	}
	return &round.Outcome{Result: result, NextRoundKey: RevealRoundKey}, nil
}

// revealState is RevealRound's BasePeriodState: the immutable
// commitment set inherited from the commit round, plus the values
// revealed so far, replaced wholesale via periodstate.Update as each
// reveal is applied.
type revealState struct {
	periodstate.Base
	Commitments map[string][]byte
	Revealed    map[string]string
}

// RevealRound accepts reveals matching an earlier commitment and
// terminates once at least threshold participants have revealed a
// value consistent with their commitment.
type RevealRound struct {
	round.Base
	threshold int64
	state     revealState
}

// NewRevealRound builds a RevealRound checking reveals, from
// participants, against commitments (as produced by
// CommitRound.EndBlock's result).
func NewRevealRound(params consensusparams.ConsensusParams, commitments map[string][]byte, participants periodstate.ParticipantSet) *RevealRound {
	base, err := periodstate.NewBase(participants)
	if err != nil {
		panic(err)
	}

	r := &RevealRound{
		threshold: params.TwoThirdsThreshold(),
		state:     revealState{Base: base, Commitments: commitments, Revealed: make(map[string]string)},
	}
	r.Base = round.Base{
		ID:     "exampleprotocol-reveal",
		State:  base,
		Params: params,
		Handlers: map[string]round.TxHandler{
			RevealTag: {
				Check: func(t tx.Transaction) bool {
					p, ok := t.Payload.(*RevealPayload)
					if !ok {
						return false
					}
					if _, known := r.state.Participants[p.Sender()]; !known {
						return false
					}
					if _, already := r.state.Revealed[p.Sender()]; already {
						return false
					}
					commitment, known := r.state.Commitments[p.Sender()]
					if !known {
						return false
					}
					expected := Hash(p.Value, p.Salt)
					return string(expected) == string(commitment)
				},
				Apply: func(t tx.Transaction) error {
					p := t.Payload.(*RevealPayload)
					next := make(map[string]string, len(r.state.Revealed)+1)
					for k, v := range r.state.Revealed {
						next[k] = v
					}
					next[p.Sender()] = p.Value

					updated, err := periodstate.Update(r.state, map[string]any{"Revealed": next})
					if err != nil {
						return err
					}
					r.state = updated
					r.Base.State = updated.Base
					return nil
				},
			},
		},
	}
	return r
}

// EndBlock reports termination, with no successor, once enough
// participants have revealed.
func (r *RevealRound) EndBlock() (*round.Outcome, error) {
	if int64(len(r.state.Revealed)) < r.threshold {
		return nil, nil
	}
	result := make(map[string]string, len(r.state.Revealed))
	for k, v := range r.state.Revealed {
		result[k] = v
	}
	return &round.Outcome{Result: result, NextRound: nil}, nil
}
