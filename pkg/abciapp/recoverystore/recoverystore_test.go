package recoverystore

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func TestLoadEmptyReturnsZeroState(t *testing.T) {
	s := New(dbm.NewMemDB())
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Height != 0 || st.AppHash != nil {
		t.Fatalf("expected zero state, got %+v", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(dbm.NewMemDB())
	want := State{Height: 42, AppHash: []byte{0xde, 0xad}}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Height != want.Height || string(got.AppHash) != string(want.AppHash) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
