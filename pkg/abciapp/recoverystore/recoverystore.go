// Package recoverystore persists the last-committed height and app hash
// so a restarted host can answer CometBFT's Info handshake without
// replaying the whole chain.
package recoverystore

import (
	"encoding/json"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

var stateKey = []byte("abciapp:state")

// State is the minimal recovery record CometBFT's handshake needs.
type State struct {
	Height  int64  `json:"height"`
	AppHash []byte `json:"app_hash"`
}

// Store persists State to a cometbft-db-backed key/value store.
type Store struct {
	db dbm.DB
}

// New wraps db.
func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// Load returns the last-persisted state, or the zero State if none has
// been saved yet.
func (s *Store) Load() (State, error) {
	raw, err := s.db.Get(stateKey)
	if err != nil {
		return State{}, fmt.Errorf("recoverystore: load: %w", err)
	}
	if raw == nil {
		return State{}, nil
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("recoverystore: decode: %w", err)
	}
	return st, nil
}

// Save persists st, fsyncing before returning.
func (s *Store) Save(st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("recoverystore: encode: %w", err)
	}
	if err := s.db.SetSync(stateKey, raw); err != nil {
		return fmt.Errorf("recoverystore: save: %w", err)
	}
	return nil
}
