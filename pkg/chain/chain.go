// Package chain implements the in-memory Block, Blockchain, and
// BlockBuilder the Period drives through its four lifecycle entry
// points. Persistent storage of the chain is out of scope for the core;
// an in-memory sequence is sufficient for the protocol.
package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/certen/period-host/pkg/tx"
)

// Header carries at minimum the monotonic block height the consensus
// engine assigned. Time is carried for logging/audit purposes only; the
// core does not reason about wall-clock time.
type Header struct {
	Height int64
	Time   time.Time
}

// Block is a value: a header plus the ordered transactions the consensus
// engine delivered for it.
type Block struct {
	Header       Header
	Transactions []tx.Transaction
}

// ErrAddBlock is returned by Blockchain.AddBlock when the block's height
// does not match the chain's expected next height.
var ErrAddBlock = errors.New("chain: add block")

// Blockchain is an ordered, append-only sequence of Blocks.
type Blockchain struct {
	blocks []Block
}

// NewBlockchain returns an empty Blockchain starting at height 1.
func NewBlockchain() *Blockchain {
	return &Blockchain{}
}

// Length returns the number of blocks committed so far.
func (c *Blockchain) Length() int { return len(c.blocks) }

// Height returns the height expected for the next appended block:
// length + 1.
func (c *Blockchain) Height() int64 { return int64(len(c.blocks)) + 1 }

// Blocks returns the committed blocks in append order. The returned
// slice must not be mutated by callers.
func (c *Blockchain) Blocks() []Block { return c.blocks }

// AddBlock appends b if and only if b.Header.Height equals Height();
// otherwise it fails with ErrAddBlock and neither appends nor mutates
// the chain.
func (c *Blockchain) AddBlock(b Block) error {
	want := c.Height()
	if b.Header.Height != want {
		return fmt.Errorf("%w: expected %d, got %d", ErrAddBlock, want, b.Header.Height)
	}
	c.blocks = append(c.blocks, b)
	return nil
}

// ErrHeaderAlreadySet is returned by Builder.SetHeader when a header was
// set on this builder and not yet cleared by Reset.
var ErrHeaderAlreadySet = errors.New("chain: header already set; call Reset first")

// ErrHeaderNotSet is returned by Builder.GetBlock when no header has
// been set.
var ErrHeaderNotSet = errors.New("chain: header not set")

// Builder is the scratch area for the in-flight block between
// BeginBlock and Commit.
type Builder struct {
	header    Header
	headerSet bool
	txs       []tx.Transaction
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Reset clears the header and transaction buffer, readying the builder
// for the next block.
func (b *Builder) Reset() {
	b.header = Header{}
	b.headerSet = false
	b.txs = nil
}

// SetHeader sets the in-flight block's header. Calling it a second time
// before Reset fails with ErrHeaderAlreadySet.
func (b *Builder) SetHeader(h Header) error {
	if b.headerSet {
		return ErrHeaderAlreadySet
	}
	b.header = h
	b.headerSet = true
	return nil
}

// AddTransaction appends t to the in-flight block's transaction buffer.
func (b *Builder) AddTransaction(t tx.Transaction) {
	b.txs = append(b.txs, t)
}

// GetBlock returns a Block built from the current header and transaction
// buffer. It fails with ErrHeaderNotSet if no header has been set.
func (b *Builder) GetBlock() (Block, error) {
	if !b.headerSet {
		return Block{}, ErrHeaderNotSet
	}
	txs := make([]tx.Transaction, len(b.txs))
	copy(txs, b.txs)
	return Block{Header: b.header, Transactions: txs}, nil
}
