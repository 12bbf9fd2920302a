package staking

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

type stakeKey struct {
	collection [20]byte
	assetID    uint64
}

type mockState struct {
	stakes     map[stakeKey]*Stake
	carryOvers map[[20]byte]*big.Int
	roles      map[string]map[[20]byte]bool
}

func newMockState() *mockState {
	return &mockState{
		stakes:     make(map[stakeKey]*Stake),
		carryOvers: make(map[[20]byte]*big.Int),
		roles:      make(map[string]map[[20]byte]bool),
	}
}

func (m *mockState) grant(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockState) StakeGet(collection [20]byte, assetID uint64) (*Stake, bool, error) {
	stake, ok := m.stakes[stakeKey{collection, assetID}]
	if !ok {
		return nil, false, nil
	}
	return stake.Clone(), true, nil
}

func (m *mockState) StakePut(collection [20]byte, assetID uint64, stake *Stake) error {
	m.stakes[stakeKey{collection, assetID}] = stake.Clone()
	return nil
}

func (m *mockState) CarryOverGet(addr [20]byte) (*big.Int, error) {
	if v, ok := m.carryOvers[addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) CarryOverSet(addr [20]byte, amount *big.Int) error {
	m.carryOvers[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	var key [20]byte
	copy(key[:], addr)
	return m.roles[role][key]
}

type mockDepositToken struct {
	balances map[[20]byte]*big.Int
	pool     [20]byte
}

func newMockDepositToken(pool [20]byte) *mockDepositToken {
	return &mockDepositToken{balances: make(map[[20]byte]*big.Int), pool: pool}
}

func (t *mockDepositToken) balance(addr [20]byte) *big.Int {
	if v, ok := t.balances[addr]; ok {
		return v
	}
	zero := big.NewInt(0)
	t.balances[addr] = zero
	return zero
}

func (t *mockDepositToken) mint(addr [20]byte, amount int64) {
	t.balances[addr] = new(big.Int).Add(t.balance(addr), big.NewInt(amount))
}

func (t *mockDepositToken) TransferFrom(from, to [20]byte, amount *big.Int) error {
	if t.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("deposit token: insufficient balance")
	}
	t.balances[from] = new(big.Int).Sub(t.balance(from), amount)
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (t *mockDepositToken) Transfer(to [20]byte, amount *big.Int) error {
	return t.TransferFrom(t.pool, to, amount)
}

type mockAssets struct {
	owners    map[stakeKey][20]byte
	approvals map[[20]byte]map[[20]byte]bool
}

func newMockAssets() *mockAssets {
	return &mockAssets{
		owners:    make(map[stakeKey][20]byte),
		approvals: make(map[[20]byte]map[[20]byte]bool),
	}
}

func (a *mockAssets) OwnerOf(collection [20]byte, assetID uint64) ([20]byte, error) {
	owner, ok := a.owners[stakeKey{collection, assetID}]
	if !ok {
		return [20]byte{}, errors.New("asset registry: unknown asset")
	}
	return owner, nil
}

func (a *mockAssets) IsApprovedForAll(collection, owner, operator [20]byte) bool {
	return a.approvals[owner][operator]
}

func (a *mockAssets) TotalSupply(collection [20]byte) (uint64, error) {
	return uint64(len(a.owners)), nil
}

type plotInfo struct {
	owner    [20]byte
	capacity int
	used     int
}

type mockPlots struct {
	plots map[uint64]*plotInfo
}

func newMockPlots() *mockPlots {
	return &mockPlots{plots: make(map[uint64]*plotInfo)}
}

func (p *mockPlots) IsAvailable(plotID uint64) (bool, error) {
	info, ok := p.plots[plotID]
	if !ok {
		return false, errors.New("plot registry: unknown plot")
	}
	return info.used < info.capacity, nil
}

func (p *mockPlots) OwnerOf(plotID uint64) ([20]byte, error) {
	info, ok := p.plots[plotID]
	if !ok {
		return [20]byte{}, errors.New("plot registry: unknown plot")
	}
	return info.owner, nil
}

func (p *mockPlots) IncrementCapacity(plotID uint64) error {
	p.plots[plotID].used++
	return nil
}

func (p *mockPlots) DecrementCapacity(plotID uint64) error {
	p.plots[plotID].used--
	return nil
}

type staticPricer struct {
	required *big.Int
}

func (p *staticPricer) RequiredDeposit() (*big.Int, error) {
	return new(big.Int).Set(p.required), nil
}

// fakeAllocator pays out min(requested, available) and records requests.
type fakeAllocator struct {
	available *big.Int
	requests  []*big.Int
}

func (a *fakeAllocator) Allocate(recipient [20]byte, requested *big.Int) (*big.Int, error) {
	a.requests = append(a.requests, new(big.Int).Set(requested))
	paid := new(big.Int).Set(requested)
	if paid.Cmp(a.available) > 0 {
		paid.Set(a.available)
	}
	a.available = new(big.Int).Sub(a.available, paid)
	return paid, nil
}

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

type fixture struct {
	engine    *Engine
	state     *mockState
	token     *mockDepositToken
	assets    *mockAssets
	plots     *mockPlots
	pricer    *staticPricer
	allocator *fakeAllocator
	now       int64

	owner      [20]byte
	pool       [20]byte
	fees       [20]byte
	collection [20]byte
	rareTier   [20]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:      newMockState(),
		assets:     newMockAssets(),
		plots:      newMockPlots(),
		pricer:     &staticPricer{required: big.NewInt(1000)},
		allocator:  &fakeAllocator{available: big.NewInt(0)},
		now:        1_700_000_000,
		owner:      testAddr(0x11),
		pool:       testAddr(0xF0),
		fees:       testAddr(0xFE),
		collection: testAddr(0xC0),
		rareTier:   testAddr(0x90),
	}
	f.token = newMockDepositToken(f.pool)
	params := DefaultParams()
	params.FeeReceiver = f.fees
	params.TierBps[f.rareTier] = 9000
	f.engine = NewEngine(params)
	f.engine.SetState(f.state)
	f.engine.SetDepositToken(f.token)
	f.engine.SetAssetRegistry(f.assets)
	f.engine.SetPlotRegistry(f.plots)
	f.engine.SetCollateralPricer(f.pricer)
	f.engine.SetAllocator(f.allocator)
	f.engine.SetPoolAddress(f.pool)
	f.engine.SetNowFunc(func() int64 { return f.now })

	f.assets.owners[stakeKey{f.collection, 1}] = f.owner
	f.plots.plots[5] = &plotInfo{owner: f.owner, capacity: 2}
	f.token.mint(f.owner, 1_000_000)
	return f
}

func (f *fixture) advance(seconds int64) { f.now += seconds }

func (f *fixture) stake(t *testing.T) {
	t.Helper()
	if err := f.engine.Stake(f.owner, f.collection, 1, 5, f.rareTier); err != nil {
		t.Fatalf("stake: %v", err)
	}
}

func (f *fixture) record(t *testing.T) *Stake {
	t.Helper()
	stake, ok, err := f.engine.GetStake(f.collection, 1)
	if err != nil || !ok {
		t.Fatalf("load stake: ok=%v err=%v", ok, err)
	}
	return stake
}

func TestLockPullsDeficitAndSticksFirstLockTime(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lock(f.owner, f.collection, 1); err != nil {
		t.Fatalf("lock: %v", err)
	}
	stake := f.record(t)
	if !stake.Locked || stake.Staked {
		t.Fatalf("unexpected flags: locked=%v staked=%v", stake.Locked, stake.Staked)
	}
	if stake.LockedAmount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("lockedAmount = %s, want 1000", stake.LockedAmount)
	}
	if f.token.balance(f.pool).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("pool balance = %s, want 1000", f.token.balance(f.pool))
	}
	firstLock := stake.StakingTime
	if firstLock != f.now {
		t.Fatalf("stakingTime = %d, want %d", firstLock, f.now)
	}

	// Relock after a price move pulls only the deficit and keeps the clock.
	f.advance(3600)
	f.pricer.required = big.NewInt(1500)
	if err := f.engine.Lock(f.owner, f.collection, 1); err != nil {
		t.Fatalf("relock: %v", err)
	}
	stake = f.record(t)
	if stake.LockedAmount.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("lockedAmount = %s, want 1500", stake.LockedAmount)
	}
	if stake.StakingTime != firstLock {
		t.Fatalf("stakingTime moved: %d -> %d", firstLock, stake.StakingTime)
	}
}

func TestLockAuthorization(t *testing.T) {
	f := newFixture(t)
	stranger := testAddr(0x99)
	if err := f.engine.Lock(stranger, f.collection, 1); !errors.Is(err, ErrNotAssetOwner) {
		t.Fatalf("expected ErrNotAssetOwner, got %v", err)
	}
	// Approved-for-all operators may act for the owner.
	f.assets.approvals[f.owner] = map[[20]byte]bool{stranger: true}
	f.token.mint(stranger, 2000)
	if err := f.engine.Lock(stranger, f.collection, 1); err != nil {
		t.Fatalf("approved lock: %v", err)
	}
	if f.record(t).Owner != f.owner {
		t.Fatal("record owner must be the asset owner, not the operator")
	}
}

func TestLockInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.token.balances[f.owner] = big.NewInt(10)
	if err := f.engine.Lock(f.owner, f.collection, 1); err == nil {
		t.Fatal("expected transfer failure")
	}
	if _, ok, _ := f.engine.GetStake(f.collection, 1); ok {
		t.Fatal("failed lock must not persist a record")
	}
}

func TestUnlockFeeTiers(t *testing.T) {
	cases := []struct {
		name    string
		elapsed int64
		wantBps uint64
	}{
		{"immediately", 0, 750},
		{"one year minus a second", secondsPerYear - 1, 750},
		{"exactly one year", secondsPerYear, 375},
		{"two years minus a second", 2*secondsPerYear - 1, 375},
		{"exactly two years", 2 * secondsPerYear, 175},
		{"three years", 3 * secondsPerYear, 175},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.engine.Lock(f.owner, f.collection, 1); err != nil {
				t.Fatalf("lock: %v", err)
			}
			ownerBefore := new(big.Int).Set(f.token.balance(f.owner))
			f.advance(tc.elapsed)
			if err := f.engine.Unlock(f.owner, f.collection, 1); err != nil {
				t.Fatalf("unlock: %v", err)
			}
			wantFee := big.NewInt(int64(1000 * tc.wantBps / 10000))
			if got := f.token.balance(f.fees); got.Cmp(wantFee) != 0 {
				t.Fatalf("fee = %s, want %s", got, wantFee)
			}
			wantReturn := new(big.Int).Sub(big.NewInt(1000), wantFee)
			gained := new(big.Int).Sub(f.token.balance(f.owner), ownerBefore)
			if gained.Cmp(wantReturn) != 0 {
				t.Fatalf("returned = %s, want %s", gained, wantReturn)
			}
			stake := f.record(t)
			if stake.Locked || stake.LockedAmount.Sign() != 0 || stake.Owner != ([20]byte{}) || stake.StakingTime != 0 {
				t.Fatalf("record not reset: %+v", stake)
			}
		})
	}
}

func TestUnlockPreconditions(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Unlock(f.owner, f.collection, 1); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("expected ErrNotLocked, got %v", err)
	}
	f.stake(t)
	if err := f.engine.Unlock(f.owner, f.collection, 1); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("expected ErrAlreadyStaked, got %v", err)
	}
}

func TestStakeAutoLocksAndAssignsPlot(t *testing.T) {
	f := newFixture(t)
	f.stake(t)
	stake := f.record(t)
	if !stake.Locked || !stake.Staked {
		t.Fatalf("unexpected flags: %+v", stake)
	}
	if stake.PlotID != 5 || stake.PlotAddress != f.rareTier {
		t.Fatalf("plot assignment wrong: %+v", stake)
	}
	if stake.LastClaimTime != f.now || stake.RemainingReward.Sign() != 0 {
		t.Fatalf("accrual fields wrong: %+v", stake)
	}
	if f.plots.plots[5].used != 1 {
		t.Fatalf("plot capacity not incremented: %d", f.plots.plots[5].used)
	}
}

func TestStakeTopsUpCollateralOnPriceMove(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lock(f.owner, f.collection, 1); err != nil {
		t.Fatalf("lock: %v", err)
	}
	f.pricer.required = big.NewInt(1800)
	f.stake(t)
	stake := f.record(t)
	if stake.LockedAmount.Cmp(big.NewInt(1800)) != 0 {
		t.Fatalf("lockedAmount = %s, want topped up to 1800", stake.LockedAmount)
	}
}

func TestStakeCollateralSufficiency(t *testing.T) {
	f := newFixture(t)
	f.token.balances[f.owner] = big.NewInt(100)
	if err := f.engine.Stake(f.owner, f.collection, 1, 5, f.rareTier); err == nil {
		t.Fatal("stake must fail when collateral cannot reach the target")
	}
	if stake, ok, _ := f.engine.GetStake(f.collection, 1); ok && stake.Staked {
		t.Fatal("failed stake must not mark the record staked")
	}
}

func TestStakePreconditions(t *testing.T) {
	f := newFixture(t)
	unknownTier := testAddr(0x77)
	if err := f.engine.Stake(f.owner, f.collection, 1, 5, unknownTier); !errors.Is(err, ErrUnrecognizedTier) {
		t.Fatalf("expected ErrUnrecognizedTier, got %v", err)
	}
	f.plots.plots[5].capacity = 0
	if err := f.engine.Stake(f.owner, f.collection, 1, 5, f.rareTier); !errors.Is(err, ErrPlotUnavailable) {
		t.Fatalf("expected ErrPlotUnavailable, got %v", err)
	}
	f.plots.plots[5].capacity = 2
	f.plots.plots[5].owner = testAddr(0x99)
	if err := f.engine.Stake(f.owner, f.collection, 1, 5, f.rareTier); !errors.Is(err, ErrNotPlotOwner) {
		t.Fatalf("expected ErrNotPlotOwner, got %v", err)
	}
	f.plots.plots[5].owner = f.owner
	f.stake(t)
	if err := f.engine.Stake(f.owner, f.collection, 1, 5, f.rareTier); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("expected ErrAlreadyStaked, got %v", err)
	}
}

func TestClaimNotDueBeforeFullPeriod(t *testing.T) {
	f := newFixture(t)
	f.stake(t)
	f.advance(ClaimPeriodSeconds - 1)
	if _, err := f.engine.Claim(f.owner, f.collection, 1); !errors.Is(err, ErrClaimNotDue) {
		t.Fatalf("expected ErrClaimNotDue, got %v", err)
	}
}

func TestClaimRequestsTierAdjustedDailyRate(t *testing.T) {
	// Staked on a 90% tier, one full day elapsed: the claim must request
	// exactly 0.9 * 175e18/365.
	f := newFixture(t)
	f.allocator.available = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	f.stake(t)
	f.advance(ClaimPeriodSeconds)
	paid, err := f.engine.Claim(f.owner, f.collection, 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	want := DefaultDailyRate()
	want.Mul(want, big.NewInt(9000))
	want.Div(want, big.NewInt(10000))
	if len(f.allocator.requests) != 1 || f.allocator.requests[0].Cmp(want) != 0 {
		t.Fatalf("requested %v, want %s", f.allocator.requests, want)
	}
	if paid.Cmp(want) != 0 {
		t.Fatalf("paid = %s, want %s", paid, want)
	}
	stake := f.record(t)
	if stake.RemainingReward.Sign() != 0 {
		t.Fatalf("remainingReward = %s, want 0", stake.RemainingReward)
	}
	if stake.LastClaimTime != f.now {
		t.Fatalf("lastClaimTime = %d, want %d", stake.LastClaimTime, f.now)
	}
}

func TestClaimShortfallCarriesOnAsset(t *testing.T) {
	f := newFixture(t)
	f.allocator.available = big.NewInt(100)
	f.stake(t)
	f.advance(ClaimPeriodSeconds)
	paid, err := f.engine.Claim(f.owner, f.collection, 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("paid = %s, want 100", paid)
	}
	owed := DefaultDailyRate()
	owed.Mul(owed, big.NewInt(9000))
	owed.Div(owed, big.NewInt(10000))
	wantRemainder := new(big.Int).Sub(owed, big.NewInt(100))
	stake := f.record(t)
	if stake.RemainingReward.Cmp(wantRemainder) != 0 {
		t.Fatalf("remainingReward = %s, want %s", stake.RemainingReward, wantRemainder)
	}

	// The shortfall rides on the next claim request.
	f.advance(ClaimPeriodSeconds)
	f.allocator.available = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	if _, err := f.engine.Claim(f.owner, f.collection, 1); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	wantSecond := new(big.Int).Add(owed, wantRemainder)
	if got := f.allocator.requests[len(f.allocator.requests)-1]; got.Cmp(wantSecond) != 0 {
		t.Fatalf("second request = %s, want %s", got, wantSecond)
	}
	if f.record(t).RemainingReward.Sign() != 0 {
		t.Fatal("remainder must clear once inventory covers it")
	}
}

func TestClaimDrainsCarryOverFirst(t *testing.T) {
	f := newFixture(t)
	f.stake(t)
	if err := f.state.CarryOverSet(f.owner, big.NewInt(500)); err != nil {
		t.Fatalf("seed carry-over: %v", err)
	}
	f.allocator.available = big.NewInt(200)
	f.advance(ClaimPeriodSeconds)
	lastClaimBefore := f.record(t).LastClaimTime
	paid, err := f.engine.Claim(f.owner, f.collection, 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("paid = %s, want 200 (partial carry-over drain)", paid)
	}
	carry, _ := f.state.CarryOverGet(f.owner)
	if carry.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("carry-over = %s, want 300", carry)
	}
	if f.record(t).LastClaimTime != lastClaimBefore {
		t.Fatal("carry-over drain must not advance the accrual clock")
	}
}

func TestUnstakeSettlesAndClears(t *testing.T) {
	f := newFixture(t)
	f.allocator.available = big.NewInt(100)
	f.stake(t)
	f.advance(2 * ClaimPeriodSeconds)
	if err := f.engine.Unstake(f.owner, f.collection, 1, false); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	stake := f.record(t)
	if stake.Staked || stake.PlotID != 0 || stake.PlotAddress != ([20]byte{}) {
		t.Fatalf("staking fields not cleared: %+v", stake)
	}
	if stake.LastClaimTime != 0 || stake.RemainingReward.Sign() != 0 {
		t.Fatalf("accrual fields not cleared: %+v", stake)
	}
	if !stake.Locked {
		t.Fatal("unstake without autoUnlock must keep the lock")
	}
	if f.plots.plots[5].used != 0 {
		t.Fatal("plot capacity not released")
	}
	// Two days at 90% minus the 100 the allocator covered.
	owed := DefaultDailyRate()
	owed.Mul(owed, big.NewInt(2))
	owed.Mul(owed, big.NewInt(9000))
	owed.Div(owed, big.NewInt(10000))
	wantCarry := new(big.Int).Sub(owed, big.NewInt(100))
	carry, _ := f.state.CarryOverGet(f.owner)
	if carry.Cmp(wantCarry) != 0 {
		t.Fatalf("carry-over = %s, want %s", carry, wantCarry)
	}
}

func TestUnstakeAutoUnlockCascades(t *testing.T) {
	f := newFixture(t)
	f.stake(t)
	ownerBefore := new(big.Int).Set(f.token.balance(f.owner))
	if err := f.engine.Unstake(f.owner, f.collection, 1, true); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	stake := f.record(t)
	if stake.Locked || stake.LockedAmount.Sign() != 0 {
		t.Fatalf("autoUnlock must release collateral: %+v", stake)
	}
	// Immediate exit pays the 7.5% tier.
	if f.token.balance(f.fees).Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("fee = %s, want 75", f.token.balance(f.fees))
	}
	gained := new(big.Int).Sub(f.token.balance(f.owner), ownerBefore)
	if gained.Cmp(big.NewInt(925)) != 0 {
		t.Fatalf("returned = %s, want 925", gained)
	}
}

func TestUnstakeForcedByAssetRegistry(t *testing.T) {
	f := newFixture(t)
	f.stake(t)
	operator := testAddr(0xAC)
	if err := f.engine.Unstake(operator, f.collection, 1, false); !errors.Is(err, ErrNotStakeOwner) {
		t.Fatalf("expected ErrNotStakeOwner, got %v", err)
	}
	f.state.grant(RoleAssetRegistry, operator)
	if err := f.engine.Unstake(operator, f.collection, 1, false); err != nil {
		t.Fatalf("forced unstake: %v", err)
	}
	if f.record(t).Staked {
		t.Fatal("forced unstake must clear the staked flag")
	}
}

func TestUnstakeRequiresStaked(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Unstake(f.owner, f.collection, 1, false); !errors.Is(err, ErrNotStaked) {
		t.Fatalf("expected ErrNotStaked, got %v", err)
	}
}

func TestBatchLengthMismatchFailsWholeBatch(t *testing.T) {
	f := newFixture(t)
	err := f.engine.LockMultiple(f.owner, [][20]byte{f.collection, f.collection}, []uint64{1})
	if !errors.Is(err, ErrBatchLengthMismatch) {
		t.Fatalf("expected ErrBatchLengthMismatch, got %v", err)
	}
	if _, ok, _ := f.engine.GetStake(f.collection, 1); ok {
		t.Fatal("mismatched batch must not touch state")
	}
	err = f.engine.StakeMultiple(f.owner, [][20]byte{f.collection}, []uint64{1}, []uint64{5, 6}, [][20]byte{f.rareTier})
	if !errors.Is(err, ErrBatchLengthMismatch) {
		t.Fatalf("expected ErrBatchLengthMismatch, got %v", err)
	}
}

func TestBatchAppliesSequentially(t *testing.T) {
	f := newFixture(t)
	f.assets.owners[stakeKey{f.collection, 2}] = f.owner
	err := f.engine.LockMultiple(f.owner, [][20]byte{f.collection, f.collection}, []uint64{1, 2})
	if err != nil {
		t.Fatalf("lock multiple: %v", err)
	}
	for _, id := range []uint64{1, 2} {
		stake, ok, _ := f.engine.GetStake(f.collection, id)
		if !ok || !stake.Locked {
			t.Fatalf("asset %d not locked", id)
		}
	}
}

func TestAdminSetters(t *testing.T) {
	f := newFixture(t)
	admin := testAddr(0xAD)
	if err := f.engine.SetTierBps(admin, testAddr(0x80), 8000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	f.state.grant(RoleAdmin, admin)
	if err := f.engine.SetTierBps(admin, testAddr(0x80), 8000); err != nil {
		t.Fatalf("set tier: %v", err)
	}
	if f.engine.Params().TierBps[testAddr(0x80)] != 8000 {
		t.Fatal("tier not registered")
	}
	if err := f.engine.SetDailyRate(admin, big.NewInt(123)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := f.engine.SetFeeReceiver(admin, testAddr(0xFD)); err != nil {
		t.Fatalf("set receiver: %v", err)
	}
	if err := f.engine.SetFeeReceiver(admin, [20]byte{}); !errors.Is(err, ErrNilFeeReceiver) {
		t.Fatalf("expected ErrNilFeeReceiver, got %v", err)
	}
}

func TestPendingRewardIncludesRemainder(t *testing.T) {
	f := newFixture(t)
	f.allocator.available = big.NewInt(50)
	f.stake(t)
	f.advance(ClaimPeriodSeconds)
	if _, err := f.engine.Claim(f.owner, f.collection, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	f.advance(ClaimPeriodSeconds)
	pending, err := f.engine.PendingReward(f.collection, 1)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	perDay := DefaultDailyRate()
	perDay.Mul(perDay, big.NewInt(9000))
	perDay.Div(perDay, big.NewInt(10000))
	want := new(big.Int).Add(perDay, new(big.Int).Sub(perDay, big.NewInt(50)))
	if pending.Cmp(want) != 0 {
		t.Fatalf("pending = %s, want %s", pending, want)
	}
}

func TestParamsCloneDetachesTierTable(t *testing.T) {
	params := DefaultParams()
	tier := testAddr(0x77)
	params.TierBps[tier] = 9000

	clone := params.Clone()
	clone.TierBps[tier] = 1
	clone.DailyRate.SetInt64(5)

	if params.TierBps[tier] != 9000 {
		t.Fatalf("tier bps = %d, want 9000", params.TierBps[tier])
	}
	if params.DailyRate.Cmp(DefaultDailyRate()) != 0 {
		t.Fatalf("daily rate mutated through clone: %s", params.DailyRate)
	}
}
