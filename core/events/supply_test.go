package events

import (
	"math/big"
	"testing"
)

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Token:  "ampl",
		Epoch:  4,
		Total:  big.NewInt(20038),
		Delta:  big.NewInt(38),
		Reason: SupplyReasonRebase,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["token"] != "AMPL" {
		t.Fatalf("unexpected token attr: %s", evt.Attributes["token"])
	}
	if evt.Attributes["total"] != "20038" || evt.Attributes["delta"] != "38" || evt.Attributes["epoch"] != "4" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonRebase {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestTokenSupplyEventDefaults(t *testing.T) {
	evt := TokenSupply{}.Event()
	if evt.Attributes["token"] != "UNKNOWN" || evt.Attributes["total"] != "0" {
		t.Fatalf("unexpected defaults: %+v", evt.Attributes)
	}
	if _, ok := evt.Attributes["delta"]; ok {
		t.Fatalf("nil delta rendered")
	}
}
