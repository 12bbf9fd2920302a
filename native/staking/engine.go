package staking

import (
	"math/big"
	"time"

	"aurora/core/events"
)

// State is the view of the ledger the engine mutates: one record per
// (collection, asset) plus the per-user carry-over balances for reward
// shortfalls not tied to a specific asset.
type State interface {
	StakeGet(collection [20]byte, assetID uint64) (*Stake, bool, error)
	StakePut(collection [20]byte, assetID uint64, stake *Stake) error
	CarryOverGet(addr [20]byte) (*big.Int, error)
	CarryOverSet(addr [20]byte, amount *big.Int) error
	HasRole(role string, addr []byte) bool
}

// DepositToken is the fungible collateral capability. TransferFrom pulls from
// a holder into pool custody; Transfer pays out of pool custody.
type DepositToken interface {
	TransferFrom(from, to [20]byte, amount *big.Int) error
	Transfer(to [20]byte, amount *big.Int) error
}

// AssetRegistry resolves ownership of the unique collateral-backed assets.
type AssetRegistry interface {
	OwnerOf(collection [20]byte, assetID uint64) ([20]byte, error)
	IsApprovedForAll(collection, owner, operator [20]byte) bool
	TotalSupply(collection [20]byte) (uint64, error)
}

// PlotRegistry tracks slot capacity and ownership.
type PlotRegistry interface {
	IsAvailable(plotID uint64) (bool, error)
	OwnerOf(plotID uint64) ([20]byte, error)
	IncrementCapacity(plotID uint64) error
	DecrementCapacity(plotID uint64) error
}

// CollateralPricer reports the current fiat-pegged deposit requirement.
type CollateralPricer interface {
	RequiredDeposit() (*big.Int, error)
}

// Allocator disburses rewards from the shared inventory; the returned amount
// may be lower than requested.
type Allocator interface {
	Allocate(recipient [20]byte, requested *big.Int) (*big.Int, error)
}

// Engine drives the per-asset stake lifecycle: lock, stake, accrue, claim,
// unstake, unlock.
type Engine struct {
	state     State
	token     DepositToken
	assets    AssetRegistry
	plots     PlotRegistry
	pricer    CollateralPricer
	allocator Allocator
	params    Params
	pool      [20]byte
	emitter   events.Emitter
	nowFn     func() int64
}

func NewEngine(params Params) *Engine {
	if params.DailyRate == nil {
		params.DailyRate = DefaultDailyRate()
	}
	if params.ClaimPeriod <= 0 {
		params.ClaimPeriod = ClaimPeriodSeconds
	}
	if params.TierBps == nil {
		params.TierBps = make(map[[20]byte]uint64)
	}
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetDepositToken configures the collateral token capability.
func (e *Engine) SetDepositToken(token DepositToken) { e.token = token }

// SetAssetRegistry configures the asset ownership capability.
func (e *Engine) SetAssetRegistry(assets AssetRegistry) { e.assets = assets }

// SetPlotRegistry configures the plot capacity capability.
func (e *Engine) SetPlotRegistry(plots PlotRegistry) { e.plots = plots }

// SetCollateralPricer configures the fiat collateral helper.
func (e *Engine) SetCollateralPricer(pricer CollateralPricer) { e.pricer = pricer }

// SetAllocator configures the reward inventory allocator.
func (e *Engine) SetAllocator(allocator Allocator) { e.allocator = allocator }

// SetPoolAddress configures the custodial account locked collateral sits in.
func (e *Engine) SetPoolAddress(pool [20]byte) { e.pool = pool }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns a shallow copy of the engine economics.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) wired() error {
	switch {
	case e.state == nil:
		return ErrNilState
	case e.token == nil:
		return ErrNilDepositToken
	case e.assets == nil:
		return ErrNilAssets
	case e.plots == nil:
		return ErrNilPlots
	case e.pricer == nil:
		return ErrNilPricer
	case e.allocator == nil:
		return ErrNilAllocator
	}
	return nil
}

func (e *Engine) loadStake(collection [20]byte, assetID uint64) (*Stake, error) {
	stake, ok, err := e.state.StakeGet(collection, assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newStake(), nil
	}
	return ensureStake(stake), nil
}

// callerControlsAsset reports whether caller is the current asset owner or an
// operator approved for all of the owner's assets.
func (e *Engine) callerControlsAsset(caller, collection [20]byte, assetID uint64) ([20]byte, error) {
	owner, err := e.assets.OwnerOf(collection, assetID)
	if err != nil {
		return [20]byte{}, err
	}
	if caller != owner && !e.assets.IsApprovedForAll(collection, owner, caller) {
		return [20]byte{}, ErrNotAssetOwner
	}
	return owner, nil
}

// Lock tops collateral up to the fiat target and marks the asset locked. The
// first lock timestamp is sticky across relocks while the record stays live.
func (e *Engine) Lock(caller, collection [20]byte, assetID uint64) error {
	if err := e.wired(); err != nil {
		return err
	}
	stake, err := e.loadStake(collection, assetID)
	if err != nil {
		return err
	}
	if stake.Staked {
		return ErrAlreadyStaked
	}
	owner, err := e.callerControlsAsset(caller, collection, assetID)
	if err != nil {
		return err
	}
	target, err := e.pricer.RequiredDeposit()
	if err != nil {
		return err
	}
	deficit := big.NewInt(0)
	if stake.LockedAmount.Cmp(target) < 0 {
		deficit = new(big.Int).Sub(target, stake.LockedAmount)
		if err := e.token.TransferFrom(caller, e.pool, deficit); err != nil {
			return err
		}
		stake.LockedAmount = new(big.Int).Add(stake.LockedAmount, deficit)
	}
	stake.Owner = owner
	stake.Locked = true
	now := e.now()
	if stake.StakingTime == 0 {
		stake.StakingTime = now
	}
	if err := e.state.StakePut(collection, assetID, stake); err != nil {
		return err
	}
	e.emit(events.AssetLocked{
		Collection:   collection,
		AssetID:      assetID,
		Owner:        owner,
		LockedAmount: cloneBigInt(stake.LockedAmount),
		Deficit:      deficit,
		Timestamp:    now,
	})
	return nil
}

// Unlock charges the tiered exit fee, returns the remainder, and resets the
// record to idle.
func (e *Engine) Unlock(caller, collection [20]byte, assetID uint64) error {
	if err := e.wired(); err != nil {
		return err
	}
	stake, err := e.loadStake(collection, assetID)
	if err != nil {
		return err
	}
	if !stake.Locked {
		return ErrNotLocked
	}
	if stake.Staked {
		return ErrAlreadyStaked
	}
	if caller != stake.Owner && !e.assets.IsApprovedForAll(collection, stake.Owner, caller) {
		return ErrNotStakeOwner
	}
	return e.unlockLocked(collection, assetID, stake)
}

// unlockLocked performs the fee split and reset; preconditions are already
// checked by the caller.
func (e *Engine) unlockLocked(collection [20]byte, assetID uint64, stake *Stake) error {
	if e.params.FeeReceiver == ([20]byte{}) {
		return ErrNilFeeReceiver
	}
	now := e.now()
	feeBps := exitFeeBps(now - stake.StakingTime)
	fee := new(big.Int).Mul(stake.LockedAmount, new(big.Int).SetUint64(feeBps))
	fee.Div(fee, big.NewInt(bpsDenominator))
	remainder := new(big.Int).Sub(stake.LockedAmount, fee)
	if fee.Sign() > 0 {
		if err := e.token.Transfer(e.params.FeeReceiver, fee); err != nil {
			return err
		}
	}
	if remainder.Sign() > 0 {
		if err := e.token.Transfer(stake.Owner, remainder); err != nil {
			return err
		}
	}
	owner := stake.Owner
	stake.Owner = [20]byte{}
	stake.Locked = false
	stake.LockedAmount = big.NewInt(0)
	stake.StakingTime = 0
	if err := e.state.StakePut(collection, assetID, stake); err != nil {
		return err
	}
	e.emit(events.AssetUnlocked{
		Collection: collection,
		AssetID:    assetID,
		Owner:      owner,
		Returned:   remainder,
		Fee:        fee,
		FeeBps:     feeBps,
		Timestamp:  now,
	})
	return nil
}

// Stake assigns a locked asset to a plot tier and starts reward accrual. The
// asset is auto-locked first when needed, and collateral is topped up if the
// price moved since locking.
func (e *Engine) Stake(caller, collection [20]byte, assetID uint64, plotID uint64, plotAddress [20]byte) error {
	if err := e.wired(); err != nil {
		return err
	}
	stake, err := e.loadStake(collection, assetID)
	if err != nil {
		return err
	}
	if stake.Staked {
		return ErrAlreadyStaked
	}
	tierBps, recognized := e.params.TierBps[plotAddress]
	if !recognized {
		return ErrUnrecognizedTier
	}
	if !stake.Locked {
		if err := e.Lock(caller, collection, assetID); err != nil {
			return err
		}
		stake, err = e.loadStake(collection, assetID)
		if err != nil {
			return err
		}
	} else {
		owner, err := e.callerControlsAsset(caller, collection, assetID)
		if err != nil {
			return err
		}
		// Top up to the current fiat target if the price moved.
		target, err := e.pricer.RequiredDeposit()
		if err != nil {
			return err
		}
		if stake.LockedAmount.Cmp(target) < 0 {
			deficit := new(big.Int).Sub(target, stake.LockedAmount)
			if err := e.token.TransferFrom(caller, e.pool, deficit); err != nil {
				return err
			}
			stake.LockedAmount = new(big.Int).Add(stake.LockedAmount, deficit)
		}
		stake.Owner = owner
	}
	available, err := e.plots.IsAvailable(plotID)
	if err != nil {
		return err
	}
	if !available {
		return ErrPlotUnavailable
	}
	plotOwner, err := e.plots.OwnerOf(plotID)
	if err != nil {
		return err
	}
	if plotOwner != caller {
		return ErrNotPlotOwner
	}
	if err := e.plots.IncrementCapacity(plotID); err != nil {
		return err
	}
	now := e.now()
	stake.Staked = true
	stake.PlotID = plotID
	stake.PlotAddress = plotAddress
	stake.LastClaimTime = now
	stake.RemainingReward = big.NewInt(0)
	if err := e.state.StakePut(collection, assetID, stake); err != nil {
		return err
	}
	e.emit(events.AssetStaked{
		Collection:  collection,
		AssetID:     assetID,
		Owner:       stake.Owner,
		PlotID:      plotID,
		PlotAddress: plotAddress,
		TierBps:     tierBps,
		Timestamp:   now,
	})
	return nil
}

// pendingReward computes the tier-adjusted accrual since the last claim.
func (e *Engine) pendingReward(stake *Stake, now int64) *big.Int {
	elapsed := now - stake.LastClaimTime
	if elapsed <= 0 || stake.LastClaimTime == 0 {
		return big.NewInt(0)
	}
	pending := new(big.Int).Mul(big.NewInt(elapsed), e.params.DailyRate)
	pending.Div(pending, big.NewInt(secondsPerDay))
	tierBps := e.params.TierBps[stake.PlotAddress]
	pending.Mul(pending, new(big.Int).SetUint64(tierBps))
	pending.Div(pending, big.NewInt(bpsDenominator))
	return pending
}

// PendingReward reports the amount a claim would currently request, including
// any per-asset carry-over.
func (e *Engine) PendingReward(collection [20]byte, assetID uint64) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	stake, err := e.loadStake(collection, assetID)
	if err != nil {
		return nil, err
	}
	if !stake.Staked {
		return big.NewInt(0), nil
	}
	owed := e.pendingReward(stake, e.now())
	return owed.Add(owed, stake.RemainingReward), nil
}

// Unstake settles the final reward, frees the plot, and returns the record to
// the locked state (or cascades to a full unlock). Callers are the recorded
// owner or the collection operator holding ROLE_ASSET_REGISTRY (forced exit).
func (e *Engine) Unstake(caller, collection [20]byte, assetID uint64, autoUnlock bool) error {
	if err := e.wired(); err != nil {
		return err
	}
	stake, err := e.loadStake(collection, assetID)
	if err != nil {
		return err
	}
	if !stake.Staked {
		return ErrNotStaked
	}
	forced := e.state.HasRole(RoleAssetRegistry, caller[:])
	if caller != stake.Owner && !forced {
		return ErrNotStakeOwner
	}
	if err := e.plots.DecrementCapacity(stake.PlotID); err != nil {
		return err
	}
	now := e.now()
	owed := e.pendingReward(stake, now)
	owed.Add(owed, stake.RemainingReward)
	paid := big.NewInt(0)
	carry := big.NewInt(0)
	if owed.Sign() > 0 {
		paid, err = e.allocator.Allocate(stake.Owner, owed)
		if err != nil {
			return err
		}
		shortfall := new(big.Int).Sub(owed, paid)
		if shortfall.Sign() > 0 {
			existing, err := e.state.CarryOverGet(stake.Owner)
			if err != nil {
				return err
			}
			carry = new(big.Int).Add(existing, shortfall)
			if err := e.state.CarryOverSet(stake.Owner, carry); err != nil {
				return err
			}
		}
	}
	plotID := stake.PlotID
	owner := stake.Owner
	stake.Staked = false
	stake.PlotID = 0
	stake.PlotAddress = [20]byte{}
	stake.LastClaimTime = 0
	stake.RemainingReward = big.NewInt(0)
	if err := e.state.StakePut(collection, assetID, stake); err != nil {
		return err
	}
	e.emit(events.AssetUnstaked{
		Collection: collection,
		AssetID:    assetID,
		Owner:      owner,
		PlotID:     plotID,
		Owed:       owed,
		Paid:       paid,
		CarryOver:  carry,
		Timestamp:  now,
	})
	if autoUnlock {
		return e.unlockLocked(collection, assetID, stake)
	}
	return nil
}

// Claim settles accrued rewards for a staked asset. A nonzero user-level
// carry-over balance is drained first; the accrual clock is untouched in that
// case. Returns the amount actually disbursed.
func (e *Engine) Claim(caller, collection [20]byte, assetID uint64) (*big.Int, error) {
	if err := e.wired(); err != nil {
		return nil, err
	}
	stake, err := e.loadStake(collection, assetID)
	if err != nil {
		return nil, err
	}
	if !stake.Staked {
		return nil, ErrNotStaked
	}
	if caller != stake.Owner {
		return nil, ErrNotStakeOwner
	}
	now := e.now()
	carry, err := e.state.CarryOverGet(caller)
	if err != nil {
		return nil, err
	}
	if carry.Sign() > 0 {
		paid, err := e.allocator.Allocate(caller, carry)
		if err != nil {
			return nil, err
		}
		remainder := new(big.Int).Sub(carry, paid)
		if err := e.state.CarryOverSet(caller, remainder); err != nil {
			return nil, err
		}
		e.emit(events.CarryOverDrained{
			Owner:     caller,
			Owed:      carry,
			Paid:      paid,
			Remainder: remainder,
			Timestamp: now,
		})
		return paid, nil
	}
	if now-stake.LastClaimTime < e.params.ClaimPeriod {
		return nil, ErrClaimNotDue
	}
	owed := e.pendingReward(stake, now)
	owed.Add(owed, stake.RemainingReward)
	paid := big.NewInt(0)
	if owed.Sign() > 0 {
		paid, err = e.allocator.Allocate(stake.Owner, owed)
		if err != nil {
			return nil, err
		}
	}
	remainder := new(big.Int).Sub(owed, paid)
	stake.RemainingReward = remainder
	stake.LastClaimTime = now
	if err := e.state.StakePut(collection, assetID, stake); err != nil {
		return nil, err
	}
	e.emit(events.RewardClaimed{
		Collection: collection,
		AssetID:    assetID,
		Owner:      stake.Owner,
		Owed:       owed,
		Paid:       paid,
		Remainder:  remainder,
		Partial:    remainder.Sign() > 0,
		Timestamp:  now,
	})
	return paid, nil
}

// CarryOver reports the user-level reward balance awaiting inventory.
func (e *Engine) CarryOver(addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	return e.state.CarryOverGet(addr)
}

// GetStake returns a copy of the record, if one exists.
func (e *Engine) GetStake(collection [20]byte, assetID uint64) (*Stake, bool, error) {
	if e.state == nil {
		return nil, false, ErrNilState
	}
	stake, ok, err := e.state.StakeGet(collection, assetID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return ensureStake(stake).Clone(), true, nil
}
