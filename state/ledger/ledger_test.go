package ledger

import (
	"errors"
	"math/big"
	"testing"

	"rebasechain/core/events"
	"rebasechain/state"
	"rebasechain/storage"
)

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func newTestLedger(t *testing.T) (*Ledger, *recordingEmitter, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	emitter := &recordingEmitter{}
	return New(state.NewKV(db), "ampl", emitter), emitter, db
}

func TestLedgerGenesisOnce(t *testing.T) {
	l, emitter, _ := newTestLedger(t)
	supply, err := l.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Sign() != 0 {
		t.Fatalf("expected empty ledger, got %s", supply)
	}
	set, err := l.Genesis(big.NewInt(20_000))
	if err != nil || !set {
		t.Fatalf("genesis: set=%v err=%v", set, err)
	}
	set, err = l.Genesis(big.NewInt(1))
	if err != nil || set {
		t.Fatalf("second genesis should be ignored: set=%v err=%v", set, err)
	}
	supply, _ = l.TotalSupply()
	if supply.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("unexpected supply %s", supply)
	}
	if len(emitter.events) != 1 || emitter.events[0].(events.TokenSupply).Reason != events.SupplyReasonGenesis {
		t.Fatalf("expected one genesis event, got %+v", emitter.events)
	}
	if _, err := l.Genesis(big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative genesis rejected")
	}
}

func TestLedgerRebase(t *testing.T) {
	l, emitter, _ := newTestLedger(t)
	if _, err := l.Genesis(big.NewInt(20_000)); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	total, err := l.Rebase(1, big.NewInt(38))
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if total.Cmp(big.NewInt(20_038)) != 0 {
		t.Fatalf("unexpected total %s", total)
	}
	epoch, snapshot, err := l.Snapshot()
	if err != nil || epoch != 1 || snapshot.Cmp(big.NewInt(20_038)) != 0 {
		t.Fatalf("unexpected snapshot %d/%v err=%v", epoch, snapshot, err)
	}
	evt, ok := emitter.events[len(emitter.events)-1].(events.TokenSupply)
	if !ok || evt.Reason != events.SupplyReasonRebase || evt.Epoch != 1 || evt.Token != "AMPL" {
		t.Fatalf("unexpected supply event %+v", emitter.events)
	}
	if evt.Delta.Cmp(big.NewInt(38)) != 0 || evt.Total.Cmp(big.NewInt(20_038)) != 0 {
		t.Fatalf("unexpected supply event amounts %+v", evt)
	}
}

func TestLedgerRejectsStaleEpoch(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if _, err := l.Rebase(2, big.NewInt(1)); err != nil {
		t.Fatalf("rebase: %v", err)
	}
	for _, epoch := range []uint64{1, 2} {
		if _, err := l.Rebase(epoch, big.NewInt(1)); !errors.Is(err, ErrEpochNotIncreasing) {
			t.Fatalf("epoch %d: expected ErrEpochNotIncreasing, got %v", epoch, err)
		}
	}
	supply, _ := l.TotalSupply()
	if supply.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("rejected rebase changed supply: %s", supply)
	}
}

func TestLedgerRejectsUnderflow(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if _, err := l.Genesis(big.NewInt(10)); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, err := l.Rebase(1, big.NewInt(-11)); !errors.Is(err, ErrSupplyUnderflow) {
		t.Fatalf("expected ErrSupplyUnderflow, got %v", err)
	}
	total, err := l.Rebase(1, big.NewInt(-10))
	if err != nil {
		t.Fatalf("rebase to zero: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("expected zero supply, got %s", total)
	}
	if _, err := l.Rebase(2, nil); !errors.Is(err, ErrNilDelta) {
		t.Fatalf("expected ErrNilDelta, got %v", err)
	}
}

func TestLedgerPersistsAcrossInstances(t *testing.T) {
	l, _, db := newTestLedger(t)
	if _, err := l.Genesis(big.NewInt(500)); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, err := l.Rebase(3, big.NewInt(5)); err != nil {
		t.Fatalf("rebase: %v", err)
	}
	reopened := New(state.NewKV(db), "AMPL", nil)
	supply, err := reopened.TotalSupply()
	if err != nil || supply.Cmp(big.NewInt(505)) != 0 {
		t.Fatalf("unexpected supply %v err=%v", supply, err)
	}
	epoch, _, _ := reopened.Snapshot()
	if epoch != 3 {
		t.Fatalf("unexpected epoch %d", epoch)
	}
}
