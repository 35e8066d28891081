// Package policystore persists the rebase policy state in the RLP key-value
// store.
package policystore

import (
	"fmt"

	"rebasechain/native/policy"
)

// Storage abstracts the KV view used to persist the policy state.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var stateKey = []byte("policy/state")

// Store implements policy.StateStore.
type Store struct {
	kv Storage
}

var _ policy.StateStore = (*Store)(nil)

// New wraps kv.
func New(kv Storage) *Store {
	return &Store{kv: kv}
}

// LoadPolicyState returns the persisted state, if any.
func (s *Store) LoadPolicyState() (*policy.State, bool, error) {
	if s == nil || s.kv == nil {
		return nil, false, fmt.Errorf("policystore: storage unavailable")
	}
	var stored policy.State
	ok, err := s.kv.KVGet(stateKey, &stored)
	if err != nil {
		return nil, false, fmt.Errorf("policystore: load: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &stored, true, nil
}

// SavePolicyState persists state.
func (s *Store) SavePolicyState(state *policy.State) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("policystore: storage unavailable")
	}
	if state == nil {
		return fmt.Errorf("policystore: state required")
	}
	if err := s.kv.KVPut(stateKey, state); err != nil {
		return fmt.Errorf("policystore: save: %w", err)
	}
	return nil
}
