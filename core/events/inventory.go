package events

import (
	"math/big"

	"aurora/core/types"
)

const (
	// TypePackageDeposited captures a reward package entering the inventory queue.
	TypePackageDeposited = "inventory.packageDeposited"
	// TypeBatchDisbursed captures an allocator disbursement, full or partial.
	TypeBatchDisbursed = "inventory.batchDisbursed"
)

// PackageDeposited is emitted after the allocator takes custody of a package.
type PackageDeposited struct {
	Manager      [20]byte
	PackageIndex uint64
	Entries      int
	Total        *big.Int
	Timestamp    int64
}

func (PackageDeposited) EventType() string { return TypePackageDeposited }

func (e PackageDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypePackageDeposited,
		Attributes: map[string]string{
			"manager":      formatAddr(e.Manager),
			"packageIndex": uintString(e.PackageIndex),
			"entries":      intString(int64(e.Entries)),
			"total":        formatAmount(e.Total),
			"timestamp":    intString(e.Timestamp),
		},
	}
}

// BatchDisbursed is emitted after every allocation, including zero-claim
// results. Partial reports requested > claimed.
type BatchDisbursed struct {
	Recipient [20]byte
	Requested *big.Int
	Claimed   *big.Int
	Entries   int
	Partial   bool
	Timestamp int64
}

func (BatchDisbursed) EventType() string { return TypeBatchDisbursed }

func (e BatchDisbursed) Event() *types.Event {
	return &types.Event{
		Type: TypeBatchDisbursed,
		Attributes: map[string]string{
			"recipient": formatAddr(e.Recipient),
			"requested": formatAmount(e.Requested),
			"claimed":   formatAmount(e.Claimed),
			"entries":   intString(int64(e.Entries)),
			"partial":   boolString(e.Partial),
			"timestamp": intString(e.Timestamp),
		},
	}
}
