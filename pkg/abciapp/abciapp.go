// Package abciapp adapts a period.Period to CometBFT's abcitypes.Application
// interface. CometBFT v0.38 drives applications through the single
// FinalizeBlock call of ABCI 2.0; Application fans that call back out
// into the legacy BeginBlock/DeliverTx/EndBlock sequence the core
// expects, then finalises on Commit.
package abciapp

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/certen/period-host/internal/plog"
	"github.com/certen/period-host/pkg/abciapp/metrics"
	"github.com/certen/period-host/pkg/abciapp/recoverystore"
	"github.com/certen/period-host/pkg/attest"
	"github.com/certen/period-host/pkg/audit"
	"github.com/certen/period-host/pkg/chain"
	"github.com/certen/period-host/pkg/crypto/bls"
	"github.com/certen/period-host/pkg/ledger"
	"github.com/certen/period-host/pkg/period"
	"github.com/certen/period-host/pkg/tx"
)

// Result codes returned in CheckTx/ExecTxResult, following the
// 0/1/2/3 convention: ok, decode failure, bad signature, round
// rejection.
const (
	CodeOK                  uint32 = 0
	CodeDecodeFailed        uint32 = 1
	CodeInvalidSignature    uint32 = 2
	CodeTransactionRejected uint32 = 3
)

// Application is the ABCI adapter. It embeds abcitypes.BaseApplication
// so the ABCI++ surface (PrepareProposal, snapshots, vote extensions)
// that period-host does not use falls back to CometBFT's no-op
// defaults.
type Application struct {
	abcitypes.BaseApplication

	period    *period.Period
	ledgerReg *ledger.Registry
	ledgerID  string
	store     *recoverystore.Store
	metrics   *metrics.Metrics
	log       *log.Logger

	// Attestation: set by WithAttestation. validatorID/blsKey let this
	// process sign its own share of a terminated round's result;
	// validators/threshold tell a Collector when enough shares have
	// arrived. blsKey == nil disables attestation entirely.
	validatorID string
	blsKey      *bls.PrivateKey
	validators  map[string]*bls.PublicKey
	threshold   int64
	auditStore  *audit.Store

	roundsSeen int
	pending    map[string]*attest.Collector
	results    map[string]any
}

// New builds an Application driving p, verifying transactions against
// ledgerReg under ledgerID, and persisting recovery state to store. m
// may be nil to disable metrics.
func New(p *period.Period, ledgerReg *ledger.Registry, ledgerID string, store *recoverystore.Store, m *metrics.Metrics) *Application {
	return &Application{
		period:    p,
		ledgerReg: ledgerReg,
		ledgerID:  ledgerID,
		store:     store,
		metrics:   m,
		log:       plog.New("abciapp"),
	}
}

// WithAttestation enables self-attestation of every round this
// Application's Period terminates: validatorID identifies this
// process among validators, blsKey signs its share, validators/
// threshold configure the Collector each terminated round's result is
// folded into. A single validator process can only ever contribute
// its own share; AddAttestationShare is the entry point a transport
// this repo doesn't implement would feed the other validators' shares
// through.
func (a *Application) WithAttestation(validatorID string, blsKey *bls.PrivateKey, validators map[string]*bls.PublicKey, threshold int64) *Application {
	a.validatorID = validatorID
	a.blsKey = blsKey
	a.validators = validators
	a.threshold = threshold
	a.pending = make(map[string]*attest.Collector)
	a.results = make(map[string]any)
	return a
}

// WithAuditStore persists every attestation this Application finalises
// to store. Optional: without it, a finalised attestation is only
// logged.
func (a *Application) WithAuditStore(store *audit.Store) *Application {
	a.auditStore = store
	return a
}

// Info reports the last-committed height and app hash so CometBFT can
// perform its handshake against a restarted validator.
func (a *Application) Info(_ context.Context, _ *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	state, err := a.store.Load()
	if err != nil {
		a.log.Printf("failed to load recovery state: %v", err)
		return &abcitypes.ResponseInfo{}, nil
	}
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  state.Height,
		LastBlockAppHash: state.AppHash,
	}, nil
}

// InitChain accepts the genesis handshake; genesis validator/participant
// seeding happens in cmd/period-hostd before the node starts, not here.
func (a *Application) InitChain(_ context.Context, _ *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	return &abcitypes.ResponseInitChain{}, nil
}

// CheckTx decodes and verifies tx, then asks the active round whether it
// would accept it. It never mutates Period state.
func (a *Application) CheckTx(_ context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	transaction, err := tx.Decode(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeDecodeFailed, Log: err.Error()}, nil
	}
	if err := transaction.Verify(a.ledgerReg, a.ledgerID); err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInvalidSignature, Log: err.Error()}, nil
	}
	if current := a.period.CurrentRound(); current == nil || !current.CheckTransaction(transaction) {
		if a.metrics != nil {
			a.metrics.ObserveRejection()
		}
		return &abcitypes.ResponseCheckTx{Code: CodeTransactionRejected, Log: "round rejected transaction"}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: CodeOK}, nil
}

// FinalizeBlock runs the full begin_block/deliver_tx*/end_block sequence
// against the ordered transactions CometBFT delivers.
func (a *Application) FinalizeBlock(_ context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	if err := a.period.BeginBlock(chain.Header{Height: req.Height, Time: req.Time}); err != nil {
		return nil, fmt.Errorf("abciapp: begin_block: %w", err)
	}

	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	included := 0
	for i, raw := range req.Txs {
		results[i] = a.deliverOne(raw)
		if results[i].Code == CodeOK {
			included++
		}
	}

	if err := a.period.EndBlock(); err != nil {
		return nil, fmt.Errorf("abciapp: end_block: %w", err)
	}
	if a.metrics != nil {
		a.metrics.ObserveBlock(included)
	}

	return &abcitypes.ResponseFinalizeBlock{TxResults: results}, nil
}

func (a *Application) deliverOne(raw []byte) *abcitypes.ExecTxResult {
	transaction, err := tx.Decode(raw)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: CodeDecodeFailed, Log: err.Error()}
	}
	if err := transaction.Verify(a.ledgerReg, a.ledgerID); err != nil {
		return &abcitypes.ExecTxResult{Code: CodeInvalidSignature, Log: err.Error()}
	}

	ok, err := a.period.DeliverTx(transaction)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: CodeTransactionRejected, Log: err.Error()}
	}
	if !ok {
		if a.metrics != nil {
			a.metrics.ObserveRejection()
		}
		return &abcitypes.ExecTxResult{Code: CodeTransactionRejected, Log: "round rejected transaction"}
	}
	return &abcitypes.ExecTxResult{Code: CodeOK}
}

// Commit finalises the in-flight block and persists recovery state.
func (a *Application) Commit(ctx context.Context, _ *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if err := a.period.Commit(); err != nil {
		return nil, fmt.Errorf("abciapp: commit: %w", err)
	}

	height := a.period.Chain().Height() - 1
	appHash := appHashForHeight(height)
	if err := a.store.Save(recoverystore.State{Height: height, AppHash: appHash}); err != nil {
		a.log.Printf("failed to persist recovery state at height %d: %v", height, err)
	}

	a.attestTerminatedRounds(ctx, height)

	return &abcitypes.ResponseCommit{}, nil
}

// attestTerminatedRounds self-signs the result of every round that
// terminated in the block just committed. period.Period never removes
// history, so the newly-terminated rounds are exactly the tail of
// PreviousRounds/RoundResults past the index attestTerminatedRounds
// last observed.
func (a *Application) attestTerminatedRounds(ctx context.Context, height int64) {
	if a.blsKey == nil {
		return
	}

	rounds := a.period.PreviousRounds()
	results := a.period.RoundResults()
	for i := a.roundsSeen; i < len(results); i++ {
		a.beginAttestation(ctx, height, rounds[i].RoundID(), results[i])
	}
	a.roundsSeen = len(results)
}

// beginAttestation opens a Collector for roundID's result, folds in
// this validator's own signature share, and attempts to finalise
// immediately in case threshold is 1 (a single-validator network).
func (a *Application) beginAttestation(ctx context.Context, height int64, roundID string, result any) {
	encoded, err := attest.EncodeResult(result)
	if err != nil {
		a.log.Printf("round %q: cannot attest result: %v", roundID, err)
		return
	}
	collector, err := attest.NewCollector(roundID, encoded, a.threshold, a.validators)
	if err != nil {
		a.log.Printf("round %q: build attestation collector: %v", roundID, err)
		return
	}
	message, err := attest.Message(roundID, encoded)
	if err != nil {
		a.log.Printf("round %q: canonicalise result: %v", roundID, err)
		return
	}
	share := a.blsKey.SignWithDomain(message, bls.DomainResult)
	if err := collector.Add(a.validatorID, share); err != nil {
		a.log.Printf("round %q: add own attestation share: %v", roundID, err)
		return
	}

	a.pending[roundID] = collector
	a.results[roundID] = result
	a.tryFinalize(ctx, height, roundID)
}

// AddAttestationShare folds an externally-sourced validator signature
// share into roundID's in-flight Collector, for a gossip transport
// outside this repo's scope to call as other validators' shares
// arrive. It fails if roundID has no pending attestation — either it
// hasn't terminated yet, was never eligible (attestation disabled), or
// has already finalised.
func (a *Application) AddAttestationShare(ctx context.Context, roundID, validator string, share *bls.Signature) error {
	collector, ok := a.pending[roundID]
	if !ok {
		return fmt.Errorf("abciapp: no pending attestation for round %q", roundID)
	}
	if err := collector.Add(validator, share); err != nil {
		return fmt.Errorf("abciapp: add attestation share: %w", err)
	}
	a.tryFinalize(ctx, -1, roundID)
	return nil
}

// tryFinalize finalises and verifies roundID's Collector once enough
// shares have accumulated, persisting the result via auditStore if
// configured. height of -1 means the commit that produced the extra
// share isn't known to the caller (AddAttestationShare); the audit
// entry then records -1 as its height.
func (a *Application) tryFinalize(ctx context.Context, height int64, roundID string) {
	collector, ok := a.pending[roundID]
	if !ok || collector.Count() < int(a.threshold) {
		return
	}

	attestation, err := collector.Finalize()
	if err != nil {
		a.log.Printf("round %q: finalize attestation: %v", roundID, err)
		return
	}
	if err := attest.Verify(attestation, a.validators); err != nil {
		a.log.Printf("round %q: attestation failed verification: %v", roundID, err)
		return
	}
	a.log.Printf("round %q: attested by %d validators", roundID, len(attestation.Signers))

	delete(a.pending, roundID)
	result := a.results[roundID]
	delete(a.results, roundID)

	if a.auditStore == nil {
		return
	}
	_, err = a.auditStore.RecordRound(ctx, audit.NewRoundRecord{
		RoundID:            roundID,
		Height:             height,
		SignerCount:        len(attestation.Signers),
		RequiredCount:      a.threshold,
		AggregateSignature: attestation.Aggregate.Bytes(),
		Result:             result,
	})
	if err != nil {
		a.log.Printf("round %q: record audit entry: %v", roundID, err)
	}
}

// Query answers a handful of read-only paths against committed state.
func (a *Application) Query(_ context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	switch req.Path {
	case "/height":
		return &abcitypes.ResponseQuery{Value: []byte(fmt.Sprintf("%d", a.period.Chain().Height()-1))}, nil
	case "/finished":
		value := "false"
		if a.period.IsFinished() {
			value = "true"
		}
		return &abcitypes.ResponseQuery{Value: []byte(value)}, nil
	default:
		return &abcitypes.ResponseQuery{Code: 1, Log: fmt.Sprintf("unknown query path %q", req.Path)}, nil
	}
}

// appHashForHeight derives a deterministic placeholder app hash. A real
// deployment would hash the replicated period state; the core treats
// state beyond the blockchain as opaque, so the adapter only needs an
// app hash that's a pure function of height for the handshake to agree.
func appHashForHeight(height int64) []byte {
	h := sha256.Sum256([]byte(fmt.Sprintf("period-host:height:%d", height)))
	return h[:]
}
