package events

import (
	"math/big"

	"aurora/core/types"
)

const (
	// TypeAssetLocked captures collateral being locked against an asset.
	TypeAssetLocked = "staking.locked"
	// TypeAssetUnlocked captures collateral release, including the exit fee split.
	TypeAssetUnlocked = "staking.unlocked"
	// TypeAssetStaked captures an asset being assigned to a plot.
	TypeAssetStaked = "staking.staked"
	// TypeAssetUnstaked captures an asset leaving its plot, with the final reward settlement.
	TypeAssetUnstaked = "staking.unstaked"
	// TypeRewardClaimed captures a reward claim, full or partial.
	TypeRewardClaimed = "staking.claimed"
	// TypeCarryOverDrained captures a claim that settled a user-level carry-over balance.
	TypeCarryOverDrained = "staking.carryOverDrained"
)

// AssetLocked is emitted after Lock tops collateral up to the fiat target.
type AssetLocked struct {
	Collection   [20]byte
	AssetID      uint64
	Owner        [20]byte
	LockedAmount *big.Int
	Deficit      *big.Int
	Timestamp    int64
}

func (AssetLocked) EventType() string { return TypeAssetLocked }

func (e AssetLocked) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetLocked,
		Attributes: map[string]string{
			"collection":   formatAddr(e.Collection),
			"assetId":      uintString(e.AssetID),
			"owner":        formatAddr(e.Owner),
			"lockedAmount": formatAmount(e.LockedAmount),
			"deficit":      formatAmount(e.Deficit),
			"timestamp":    intString(e.Timestamp),
		},
	}
}

// AssetUnlocked is emitted after Unlock pays the tiered exit fee and returns
// the remainder to the owner.
type AssetUnlocked struct {
	Collection [20]byte
	AssetID    uint64
	Owner      [20]byte
	Returned   *big.Int
	Fee        *big.Int
	FeeBps     uint64
	Timestamp  int64
}

func (AssetUnlocked) EventType() string { return TypeAssetUnlocked }

func (e AssetUnlocked) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetUnlocked,
		Attributes: map[string]string{
			"collection": formatAddr(e.Collection),
			"assetId":    uintString(e.AssetID),
			"owner":      formatAddr(e.Owner),
			"returned":   formatAmount(e.Returned),
			"fee":        formatAmount(e.Fee),
			"feeBps":     uintString(e.FeeBps),
			"timestamp":  intString(e.Timestamp),
		},
	}
}

// AssetStaked is emitted once an asset is assigned to a plot tier.
type AssetStaked struct {
	Collection  [20]byte
	AssetID     uint64
	Owner       [20]byte
	PlotID      uint64
	PlotAddress [20]byte
	TierBps     uint64
	Timestamp   int64
}

func (AssetStaked) EventType() string { return TypeAssetStaked }

func (e AssetStaked) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetStaked,
		Attributes: map[string]string{
			"collection":  formatAddr(e.Collection),
			"assetId":     uintString(e.AssetID),
			"owner":       formatAddr(e.Owner),
			"plotId":      uintString(e.PlotID),
			"plotAddress": formatAddr(e.PlotAddress),
			"tierBps":     uintString(e.TierBps),
			"timestamp":   intString(e.Timestamp),
		},
	}
}

// AssetUnstaked is emitted when an asset leaves its plot. Paid may be lower
// than Owed; the difference is carried over on the owner's balance.
type AssetUnstaked struct {
	Collection [20]byte
	AssetID    uint64
	Owner      [20]byte
	PlotID     uint64
	Owed       *big.Int
	Paid       *big.Int
	CarryOver  *big.Int
	Timestamp  int64
}

func (AssetUnstaked) EventType() string { return TypeAssetUnstaked }

func (e AssetUnstaked) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetUnstaked,
		Attributes: map[string]string{
			"collection": formatAddr(e.Collection),
			"assetId":    uintString(e.AssetID),
			"owner":      formatAddr(e.Owner),
			"plotId":     uintString(e.PlotID),
			"owed":       formatAmount(e.Owed),
			"paid":       formatAmount(e.Paid),
			"carryOver":  formatAmount(e.CarryOver),
			"timestamp":  intString(e.Timestamp),
		},
	}
}

// RewardClaimed is emitted on every claim settlement. Partial reports whether
// inventory covered less than the owed amount.
type RewardClaimed struct {
	Collection [20]byte
	AssetID    uint64
	Owner      [20]byte
	Owed       *big.Int
	Paid       *big.Int
	Remainder  *big.Int
	Partial    bool
	Timestamp  int64
}

func (RewardClaimed) EventType() string { return TypeRewardClaimed }

func (e RewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"collection": formatAddr(e.Collection),
			"assetId":    uintString(e.AssetID),
			"owner":      formatAddr(e.Owner),
			"owed":       formatAmount(e.Owed),
			"paid":       formatAmount(e.Paid),
			"remainder":  formatAmount(e.Remainder),
			"partial":    boolString(e.Partial),
			"timestamp":  intString(e.Timestamp),
		},
	}
}

// CarryOverDrained is emitted when a claim settles a user-level carry-over
// balance instead of the asset's accrual.
type CarryOverDrained struct {
	Owner     [20]byte
	Owed      *big.Int
	Paid      *big.Int
	Remainder *big.Int
	Timestamp int64
}

func (CarryOverDrained) EventType() string { return TypeCarryOverDrained }

func (e CarryOverDrained) Event() *types.Event {
	return &types.Event{
		Type: TypeCarryOverDrained,
		Attributes: map[string]string{
			"owner":     formatAddr(e.Owner),
			"owed":      formatAmount(e.Owed),
			"paid":      formatAmount(e.Paid),
			"remainder": formatAmount(e.Remainder),
			"timestamp": intString(e.Timestamp),
		},
	}
}
