package events

import (
	"math/big"
	"strconv"
	"strings"

	"rebasechain/core/types"
)

const (
	// TypeTokenSupply is emitted whenever the ledger total supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonRebase identifies supply changes applied by the rebase policy.
	SupplyReasonRebase = "rebase"
	// SupplyReasonGenesis identifies the initial supply credited to a ledger.
	SupplyReasonGenesis = "genesis"
)

// TokenSupply captures a supply delta for the elastic token.
type TokenSupply struct {
	Token  string
	Epoch  uint64
	Total  *big.Int
	Delta  *big.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{}
	token := normalizeToken(e.Token)
	if token == "" {
		token = "UNKNOWN"
	}
	attrs["token"] = token
	attrs["epoch"] = strconv.FormatUint(e.Epoch, 10)

	total := big.NewInt(0)
	if e.Total != nil {
		total = new(big.Int).Set(e.Total)
	}
	attrs["total"] = total.String()

	if e.Delta != nil {
		attrs["delta"] = e.Delta.String()
	}

	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}

	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
