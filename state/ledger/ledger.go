// Package ledger implements the elastic token ledger the rebase engine drives.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"rebasechain/core/events"
)

var (
	// ErrEpochNotIncreasing is returned when a rebase epoch does not advance the
	// last applied epoch.
	ErrEpochNotIncreasing = errors.New("ledger: epoch must increase")
	// ErrSupplyUnderflow is returned when a delta would drive supply negative.
	ErrSupplyUnderflow = errors.New("ledger: supply underflow")
	// ErrNilDelta is returned when no delta is supplied.
	ErrNilDelta = errors.New("ledger: delta required")
)

// Storage abstracts the KV view used to persist the supply record.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var supplyKey = []byte("ledger/supply")

type supplyRecord struct {
	Total *big.Int
	Epoch uint64
}

// Ledger tracks the total supply of a single elastic token together with the
// last rebase epoch applied to it.
type Ledger struct {
	mu      sync.Mutex
	store   Storage
	token   string
	emitter events.Emitter
}

// New constructs a ledger for token persisted in store.
func New(store Storage, token string, emitter events.Emitter) *Ledger {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Ledger{store: store, token: strings.ToUpper(strings.TrimSpace(token)), emitter: emitter}
}

// Token returns the ledger token symbol.
func (l *Ledger) Token() string { return l.token }

func (l *Ledger) load() (supplyRecord, bool, error) {
	var rec supplyRecord
	ok, err := l.store.KVGet(supplyKey, &rec)
	if err != nil {
		return supplyRecord{}, false, fmt.Errorf("ledger: load supply: %w", err)
	}
	if !ok || rec.Total == nil {
		return supplyRecord{Total: big.NewInt(0)}, ok, nil
	}
	return rec, true, nil
}

// Genesis credits the initial supply when the ledger has never been written.
// It reports whether the supply was set.
func (l *Ledger) Genesis(supply *big.Int) (bool, error) {
	if supply == nil || supply.Sign() < 0 {
		return false, fmt.Errorf("ledger: genesis supply must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok, err := l.load()
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	rec := supplyRecord{Total: new(big.Int).Set(supply)}
	if err := l.store.KVPut(supplyKey, rec); err != nil {
		return false, fmt.Errorf("ledger: store supply: %w", err)
	}
	l.emitter.Emit(events.TokenSupply{
		Token:  l.token,
		Total:  new(big.Int).Set(supply),
		Delta:  new(big.Int).Set(supply),
		Reason: events.SupplyReasonGenesis,
	})
	return true, nil
}

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, _, err := l.load()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(rec.Total), nil
}

// Snapshot returns the last applied rebase epoch together with the total
// supply it produced.
func (l *Ledger) Snapshot() (uint64, *big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, _, err := l.load()
	if err != nil {
		return 0, nil, err
	}
	return rec.Epoch, new(big.Int).Set(rec.Total), nil
}

// Rebase applies delta to the total supply for epoch and returns the new
// supply.
func (l *Ledger) Rebase(epoch uint64, delta *big.Int) (*big.Int, error) {
	if delta == nil {
		return nil, ErrNilDelta
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, _, err := l.load()
	if err != nil {
		return nil, err
	}
	if epoch <= rec.Epoch {
		return nil, fmt.Errorf("%w: epoch %d after %d", ErrEpochNotIncreasing, epoch, rec.Epoch)
	}
	total := new(big.Int).Add(rec.Total, delta)
	if total.Sign() < 0 {
		return nil, fmt.Errorf("%w: supply %s delta %s", ErrSupplyUnderflow, rec.Total, delta)
	}
	if err := l.store.KVPut(supplyKey, supplyRecord{Total: total, Epoch: epoch}); err != nil {
		return nil, fmt.Errorf("ledger: store supply: %w", err)
	}
	l.emitter.Emit(events.TokenSupply{
		Token:  l.token,
		Epoch:  epoch,
		Total:  new(big.Int).Set(total),
		Delta:  new(big.Int).Set(delta),
		Reason: events.SupplyReasonRebase,
	})
	slog.Debug("ledger: supply rebased", "token", l.token, "epoch", epoch, "delta", delta.String(), "total", total.String())
	return new(big.Int).Set(total), nil
}
