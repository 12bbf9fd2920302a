package staking

import (
	"errors"
	"math/big"
)

const (
	// RoleAdmin may retune fee receiver, tiers, and reward rate.
	RoleAdmin = "ROLE_STAKING_ADMIN"
	// RoleAssetRegistry marks the collection operator allowed to force exits.
	RoleAssetRegistry = "ROLE_ASSET_REGISTRY"
)

// ClaimPeriodSeconds is the minimum accrual window between reward claims.
const ClaimPeriodSeconds int64 = 24 * 60 * 60

const (
	secondsPerDay  int64 = 24 * 60 * 60
	secondsPerYear int64 = 365 * secondsPerDay

	bpsDenominator = 10_000

	// Exit fee tiers by time since first lock. Boundaries are inclusive on
	// the lower tier: unlocking at exactly one year pays 375 bps.
	feeUnderOneYearBps  uint64 = 750
	feeUnderTwoYearsBps uint64 = 375
	feeAfterTwoYearsBps uint64 = 175
)

var (
	ErrNilState            = errors.New("staking: state not configured")
	ErrNilDepositToken     = errors.New("staking: deposit token not configured")
	ErrNilAssets           = errors.New("staking: asset registry not configured")
	ErrNilPlots            = errors.New("staking: plot registry not configured")
	ErrNilPricer           = errors.New("staking: collateral pricer not configured")
	ErrNilAllocator        = errors.New("staking: allocator not configured")
	ErrNilFeeReceiver      = errors.New("staking: fee receiver not configured")
	ErrNotAssetOwner       = errors.New("staking: caller is not the asset owner")
	ErrNotStakeOwner       = errors.New("staking: caller is not the recorded owner")
	ErrNotLocked           = errors.New("staking: asset is not locked")
	ErrAlreadyStaked       = errors.New("staking: asset is already staked")
	ErrNotStaked           = errors.New("staking: asset is not staked")
	ErrUnrecognizedTier    = errors.New("staking: plot address is not a recognized tier")
	ErrPlotUnavailable     = errors.New("staking: plot has no free capacity")
	ErrNotPlotOwner        = errors.New("staking: caller does not own the plot")
	ErrClaimNotDue         = errors.New("staking: accrual period has not elapsed")
	ErrBatchLengthMismatch = errors.New("staking: batch arrays must share one length")
	ErrUnauthorized        = errors.New("staking: caller lacks required role")
)

// DefaultDailyRate is the global accrual constant: 175e18 reward units per
// year, expressed per day.
func DefaultDailyRate() *big.Int {
	yearly := new(big.Int).Mul(big.NewInt(175), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return yearly.Div(yearly, big.NewInt(365))
}

// Stake is the per-asset record. Records are created on first lock and never
// deleted; transitions reset fields to neutral values instead.
type Stake struct {
	Owner           [20]byte `json:"owner"`
	Locked          bool     `json:"isLocked"`
	Staked          bool     `json:"isStaked"`
	LockedAmount    *big.Int `json:"lockedAmount"`
	StakingTime     int64    `json:"stakingTime"`
	LastClaimTime   int64    `json:"lastClaimTime"`
	RemainingReward *big.Int `json:"remainingReward"`
	PlotID          uint64   `json:"plotId"`
	PlotAddress     [20]byte `json:"plotAddress"`
}

func newStake() *Stake {
	return &Stake{LockedAmount: big.NewInt(0), RemainingReward: big.NewInt(0)}
}

func ensureStake(s *Stake) *Stake {
	if s == nil {
		return newStake()
	}
	if s.LockedAmount == nil {
		s.LockedAmount = big.NewInt(0)
	}
	if s.RemainingReward == nil {
		s.RemainingReward = big.NewInt(0)
	}
	return s
}

// Clone deep-copies the record so callers never alias stored state.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	clone.LockedAmount = cloneBigInt(s.LockedAmount)
	clone.RemainingReward = cloneBigInt(s.RemainingReward)
	return &clone
}

// Params carries the engine's tunable economics.
type Params struct {
	// DailyRate is the reward accrual per staked asset per day before the
	// tier multiplier.
	DailyRate *big.Int
	// ClaimPeriod is the minimum seconds between claims on one asset.
	ClaimPeriod int64
	// TierBps maps recognized plot tier addresses to their reward multiplier
	// in basis points. Unlisted addresses accrue nothing and cannot stake.
	TierBps map[[20]byte]uint64
	// FeeReceiver collects exit fees on unlock.
	FeeReceiver [20]byte
}

// Clone deep-copies the params so two engines never share the tier table or
// the rate value.
func (p Params) Clone() Params {
	clone := p
	clone.DailyRate = cloneBigInt(p.DailyRate)
	clone.TierBps = make(map[[20]byte]uint64, len(p.TierBps))
	for addr, bps := range p.TierBps {
		clone.TierBps[addr] = bps
	}
	return clone
}

// DefaultParams returns the production constants with an empty tier table.
func DefaultParams() Params {
	return Params{
		DailyRate:   DefaultDailyRate(),
		ClaimPeriod: ClaimPeriodSeconds,
		TierBps:     make(map[[20]byte]uint64),
	}
}

// exitFeeBps returns the tiered exit fee for the elapsed lock duration.
func exitFeeBps(elapsed int64) uint64 {
	switch {
	case elapsed < secondsPerYear:
		return feeUnderOneYearBps
	case elapsed < 2*secondsPerYear:
		return feeUnderTwoYearsBps
	default:
		return feeAfterTwoYearsBps
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
