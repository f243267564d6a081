package chain

import (
	"errors"
	"testing"
)

func TestBlockchainHeightInvariant(t *testing.T) {
	c := NewBlockchain()
	if c.Height() != 1 {
		t.Fatalf("expected initial height 1, got %d", c.Height())
	}

	for h := int64(1); h <= 5; h++ {
		if err := c.AddBlock(Block{Header: Header{Height: h}}); err != nil {
			t.Fatalf("AddBlock(height=%d): %v", h, err)
		}
		if c.Length() != int(h) {
			t.Fatalf("expected length %d, got %d", h, c.Length())
		}
		if c.Height() != h+1 {
			t.Fatalf("expected height %d, got %d", h+1, c.Height())
		}
	}
}

func TestBlockchainRejectsWrongHeight(t *testing.T) {
	c := NewBlockchain()
	if err := c.AddBlock(Block{Header: Header{Height: 1}}); err != nil {
		t.Fatalf("AddBlock(1): %v", err)
	}

	for _, bad := range []int64{0, 1, 3} {
		if err := c.AddBlock(Block{Header: Header{Height: bad}}); !errors.Is(err, ErrAddBlock) {
			t.Fatalf("AddBlock(%d): expected ErrAddBlock, got %v", bad, err)
		}
	}
	if c.Length() != 1 {
		t.Fatalf("a rejected AddBlock must not mutate the chain, length=%d", c.Length())
	}
}

func TestBuilderLifecycle(t *testing.T) {
	b := NewBuilder()

	if _, err := b.GetBlock(); !errors.Is(err, ErrHeaderNotSet) {
		t.Fatalf("expected ErrHeaderNotSet before SetHeader, got %v", err)
	}

	if err := b.SetHeader(Header{Height: 1}); err != nil {
		t.Fatalf("SetHeader: %v", err)
	}
	if err := b.SetHeader(Header{Height: 1}); !errors.Is(err, ErrHeaderAlreadySet) {
		t.Fatalf("expected ErrHeaderAlreadySet on double SetHeader, got %v", err)
	}

	got, err := b.GetBlock()
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if got.Header.Height != 1 {
		t.Fatalf("expected height 1, got %d", got.Header.Height)
	}
	if len(got.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(got.Transactions))
	}

	b.Reset()
	if err := b.SetHeader(Header{Height: 2}); err != nil {
		t.Fatalf("SetHeader after Reset: %v", err)
	}
}
