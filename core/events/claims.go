package events

import (
	"encoding/hex"
	"math/big"

	"aurora/core/types"
)

// TypeMerkleClaimed captures a Merkle claim settlement in either namespace.
const TypeMerkleClaimed = "claims.merkleClaimed"

// MerkleClaimed is emitted for asset-reward and staking-pool Merkle claims.
// Remainder is zero once the key is fully consumed.
type MerkleClaimed struct {
	Namespace string
	Key       [32]byte
	Claimant  [20]byte
	Owed      *big.Int
	Paid      *big.Int
	Remainder *big.Int
	Timestamp int64
}

func (MerkleClaimed) EventType() string { return TypeMerkleClaimed }

func (e MerkleClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeMerkleClaimed,
		Attributes: map[string]string{
			"namespace": e.Namespace,
			"key":       hex.EncodeToString(e.Key[:]),
			"claimant":  formatAddr(e.Claimant),
			"owed":      formatAmount(e.Owed),
			"paid":      formatAmount(e.Paid),
			"remainder": formatAmount(e.Remainder),
			"timestamp": intString(e.Timestamp),
		},
	}
}
