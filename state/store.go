package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/storage"
)

var (
	ErrUnknownAsset           = errors.New("state: unknown asset")
	ErrUnknownPlot            = errors.New("state: unknown plot")
	ErrInsufficientBalance    = errors.New("state: insufficient balance")
	ErrBatchLengthMismatch    = errors.New("state: batch arrays must share one length")
	ErrNonPositiveAmount      = errors.New("state: amount must be positive")
	ErrPlotAlreadyExists      = errors.New("state: plot already registered")
	ErrAssetAlreadyRegistered = errors.New("state: asset already registered")
)

// Store implements every engine state interface plus the in-process token,
// asset, and plot capabilities stakingd runs with. All records live in one
// key-value database; Stage returns an overlay-backed copy whose writes only
// reach the base on Commit, which gives each operation (and each batch
// variant) its all-or-nothing contract.
type Store struct {
	db   storage.Database
	pool [20]byte
}

func NewStore(db storage.Database, pool [20]byte) *Store {
	return &Store{db: db, pool: pool}
}

// PoolAddress reports the custodial account the store settles against.
func (s *Store) PoolAddress() [20]byte { return s.pool }

// Stage returns a store whose writes are buffered in an overlay.
func (s *Store) Stage() (*Store, *storage.Overlay) {
	overlay := storage.NewOverlay(s.db)
	return &Store{db: overlay, pool: s.pool}, overlay
}

func (s *Store) getJSON(key []byte, out any) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return s.db.Put(key, raw)
}

func (s *Store) getBigInt(key []byte) (*big.Int, error) {
	var encoded string
	ok, err := s.getJSON(key, &encoded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	value, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt amount at %q", key)
	}
	return value, nil
}

func (s *Store) putBigInt(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	return s.putJSON(key, value.String())
}

func (s *Store) getUint(key []byte) (uint64, error) {
	var value uint64
	ok, err := s.getJSON(key, &value)
	if err != nil || !ok {
		return 0, err
	}
	return value, nil
}

// --- staking.State ---

func (s *Store) StakeGet(collection [20]byte, assetID uint64) (*staking.Stake, bool, error) {
	stake := &staking.Stake{}
	ok, err := s.getJSON(stakeKey(collection, assetID), stake)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stake, true, nil
}

func (s *Store) StakePut(collection [20]byte, assetID uint64, stake *staking.Stake) error {
	return s.putJSON(stakeKey(collection, assetID), stake)
}

func (s *Store) CarryOverGet(addr [20]byte) (*big.Int, error) {
	return s.getBigInt(carryOverKey(addr))
}

func (s *Store) CarryOverSet(addr [20]byte, amount *big.Int) error {
	return s.putBigInt(carryOverKey(addr), amount)
}

// --- inventory.State ---

func (s *Store) InventoryPackage(index uint64) (*inventory.Package, bool, error) {
	pkg := &inventory.Package{}
	ok, err := s.getJSON(packageKey(index), pkg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return pkg, true, nil
}

func (s *Store) InventoryPutPackage(index uint64, pkg *inventory.Package) error {
	return s.putJSON(packageKey(index), pkg)
}

func (s *Store) InventoryPackageCount() (uint64, error) {
	return s.getUint([]byte(packageCountKey))
}

func (s *Store) InventorySetPackageCount(count uint64) error {
	return s.putJSON([]byte(packageCountKey), count)
}

func (s *Store) InventoryTotalAvailable() (*big.Int, error) {
	return s.getBigInt([]byte(totalAvailableKey))
}

func (s *Store) InventorySetTotalAvailable(total *big.Int) error {
	return s.putBigInt([]byte(totalAvailableKey), total)
}

func (s *Store) InventoryOldestIndex() (uint64, error) {
	return s.getUint([]byte(oldestIndexKey))
}

func (s *Store) InventorySetOldestIndex(index uint64) error {
	return s.putJSON([]byte(oldestIndexKey), index)
}

// --- claims.State ---

func (s *Store) ClaimRoot(namespace string) ([32]byte, bool, error) {
	var encoded string
	ok, err := s.getJSON(claimRootKey(namespace), &encoded)
	if err != nil || !ok {
		return [32]byte{}, ok, err
	}
	var root [32]byte
	raw, decodeErr := decodeHex32(encoded)
	if decodeErr != nil {
		return [32]byte{}, false, decodeErr
	}
	root = raw
	return root, true, nil
}

func (s *Store) SetClaimRoot(namespace string, root [32]byte) error {
	return s.putJSON(claimRootKey(namespace), encodeHex32(root))
}

func (s *Store) ClearClaimRoot(namespace string) error {
	return s.db.Delete(claimRootKey(namespace))
}

func (s *Store) ClaimConsumed(namespace string, key [32]byte) (bool, error) {
	var consumed bool
	ok, err := s.getJSON(claimConsumedKey(namespace, key), &consumed)
	if err != nil || !ok {
		return false, err
	}
	return consumed, nil
}

func (s *Store) SetClaimConsumed(namespace string, key [32]byte) error {
	return s.putJSON(claimConsumedKey(namespace, key), true)
}

func (s *Store) ClaimRemainder(namespace string, key [32]byte) (*big.Int, error) {
	return s.getBigInt(claimRemainderKey(namespace, key))
}

func (s *Store) SetClaimRemainder(namespace string, key [32]byte, amount *big.Int) error {
	return s.putBigInt(claimRemainderKey(namespace, key), amount)
}

// --- role store ---

// HasRole swallows storage errors and reports false; authorization checks
// must not grant access on a read failure.
func (s *Store) HasRole(role string, addr []byte) bool {
	var held bool
	ok, err := s.getJSON(roleKey(role, addr), &held)
	if err != nil || !ok {
		return false
	}
	return held
}

func (s *Store) GrantRole(role string, addr [20]byte) error {
	return s.putJSON(roleKey(role, addr[:]), true)
}

func (s *Store) RevokeRole(role string, addr [20]byte) error {
	return s.db.Delete(roleKey(role, addr[:]))
}

// --- deposit token (staking.DepositToken) ---

func (s *Store) DepositBalance(addr [20]byte) (*big.Int, error) {
	return s.getBigInt(depositBalanceKey(addr))
}

// MintDeposit credits a balance; seeding/admin path.
func (s *Store) MintDeposit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	balance, err := s.DepositBalance(addr)
	if err != nil {
		return err
	}
	return s.putBigInt(depositBalanceKey(addr), balance.Add(balance, amount))
}

func (s *Store) TransferFrom(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := s.DepositBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := s.DepositBalance(to)
	if err != nil {
		return err
	}
	if err := s.putBigInt(depositBalanceKey(from), fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	return s.putBigInt(depositBalanceKey(to), toBalance.Add(toBalance, amount))
}

func (s *Store) Transfer(to [20]byte, amount *big.Int) error {
	return s.TransferFrom(s.pool, to, amount)
}

// --- reward token (inventory.RewardToken) ---

func (s *Store) RewardBalance(addr [20]byte, id uint64) (*big.Int, error) {
	return s.getBigInt(rewardBalanceKey(addr, id))
}

// MintRewards credits reward balances; seeding/admin path.
func (s *Store) MintRewards(addr [20]byte, ids []uint64, amounts []*big.Int) error {
	if len(ids) != len(amounts) {
		return ErrBatchLengthMismatch
	}
	for i := range ids {
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return ErrNonPositiveAmount
		}
		balance, err := s.RewardBalance(addr, ids[i])
		if err != nil {
			return err
		}
		if err := s.putBigInt(rewardBalanceKey(addr, ids[i]), balance.Add(balance, amounts[i])); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) BatchTransfer(from, to [20]byte, ids []uint64, amounts []*big.Int) error {
	if len(ids) != len(amounts) {
		return ErrBatchLengthMismatch
	}
	for i := range ids {
		amount := amounts[i]
		if amount == nil || amount.Sign() < 0 {
			return ErrNonPositiveAmount
		}
		if amount.Sign() == 0 {
			continue
		}
		fromBalance, err := s.RewardBalance(from, ids[i])
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: reward id %d", ErrInsufficientBalance, ids[i])
		}
		toBalance, err := s.RewardBalance(to, ids[i])
		if err != nil {
			return err
		}
		if err := s.putBigInt(rewardBalanceKey(from, ids[i]), fromBalance.Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := s.putBigInt(rewardBalanceKey(to, ids[i]), toBalance.Add(toBalance, amount)); err != nil {
			return err
		}
	}
	return nil
}

// --- asset registry (staking.AssetRegistry) ---

func (s *Store) OwnerOf(collection [20]byte, assetID uint64) ([20]byte, error) {
	var encoded string
	ok, err := s.getJSON(assetOwnerKey(collection, assetID), &encoded)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrUnknownAsset
	}
	return decodeHex20(encoded)
}

func (s *Store) IsApprovedForAll(collection, owner, operator [20]byte) bool {
	var approved bool
	ok, err := s.getJSON(assetApprovalKey(collection, owner, operator), &approved)
	if err != nil || !ok {
		return false
	}
	return approved
}

func (s *Store) TotalSupply(collection [20]byte) (uint64, error) {
	return s.getUint(assetSupplyKey(collection))
}

// RegisterAsset records ownership of a newly minted asset (seeding path).
func (s *Store) RegisterAsset(collection [20]byte, assetID uint64, owner [20]byte) error {
	var existing string
	ok, err := s.getJSON(assetOwnerKey(collection, assetID), &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAssetAlreadyRegistered
	}
	if err := s.putJSON(assetOwnerKey(collection, assetID), encodeHex20(owner)); err != nil {
		return err
	}
	supply, err := s.TotalSupply(collection)
	if err != nil {
		return err
	}
	return s.putJSON(assetSupplyKey(collection), supply+1)
}

func (s *Store) SetApprovalForAll(collection, owner, operator [20]byte, approved bool) error {
	if !approved {
		return s.db.Delete(assetApprovalKey(collection, owner, operator))
	}
	return s.putJSON(assetApprovalKey(collection, owner, operator), true)
}

// --- plot registry (staking.PlotRegistry) ---

type plotRecord struct {
	Owner    string `json:"owner"`
	Capacity int    `json:"capacity"`
	Used     int    `json:"used"`
}

func (s *Store) loadPlot(plotID uint64) (*plotRecord, error) {
	record := &plotRecord{}
	ok, err := s.getJSON(plotKey(plotID), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPlot
	}
	return record, nil
}

func (s *Store) RegisterPlot(plotID uint64, owner [20]byte, capacity int) error {
	if _, err := s.loadPlot(plotID); err == nil {
		return ErrPlotAlreadyExists
	} else if !errors.Is(err, ErrUnknownPlot) {
		return err
	}
	return s.putJSON(plotKey(plotID), &plotRecord{Owner: encodeHex20(owner), Capacity: capacity})
}

func (s *Store) IsAvailable(plotID uint64) (bool, error) {
	record, err := s.loadPlot(plotID)
	if err != nil {
		return false, err
	}
	return record.Used < record.Capacity, nil
}

func (s *Store) PlotOwnerOf(plotID uint64) ([20]byte, error) {
	record, err := s.loadPlot(plotID)
	if err != nil {
		return [20]byte{}, err
	}
	return decodeHex20(record.Owner)
}

func (s *Store) IncrementCapacity(plotID uint64) error {
	record, err := s.loadPlot(plotID)
	if err != nil {
		return err
	}
	record.Used++
	return s.putJSON(plotKey(plotID), record)
}

func (s *Store) DecrementCapacity(plotID uint64) error {
	record, err := s.loadPlot(plotID)
	if err != nil {
		return err
	}
	if record.Used > 0 {
		record.Used--
	}
	return s.putJSON(plotKey(plotID), record)
}
