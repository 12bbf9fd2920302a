package claims

import (
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"aurora/core/events"
	"aurora/crypto/merkle"
)

const (
	// RoleAdmin may set and clear the Merkle roots.
	RoleAdmin = "ROLE_CLAIMS_ADMIN"

	// NamespaceAssetRewards covers per-asset reward claims keyed by
	// (site, asset-id, amount) leaves.
	NamespaceAssetRewards = "assetRewards"
	// NamespaceStakingPool covers pool-level claims keyed by
	// (claimant, amount) leaves.
	NamespaceStakingPool = "stakingPool"
)

var (
	ErrNilState       = errors.New("claims: state not configured")
	ErrNilAllocator   = errors.New("claims: allocator not configured")
	ErrUnauthorized   = errors.New("claims: caller lacks required role")
	ErrNoRoot         = errors.New("claims: no merkle root configured")
	ErrInvalidProof   = errors.New("claims: proof does not recompute the root")
	ErrAlreadyClaimed = errors.New("claims: key already fully claimed")
	ErrZeroAmount     = errors.New("claims: amount must be positive")
)

// State is the ledger view for one-time and partially-fulfilled Merkle
// claims. Consumed keys and remainders live in per-namespace maps.
type State interface {
	ClaimRoot(namespace string) ([32]byte, bool, error)
	SetClaimRoot(namespace string, root [32]byte) error
	ClearClaimRoot(namespace string) error
	ClaimConsumed(namespace string, key [32]byte) (bool, error)
	SetClaimConsumed(namespace string, key [32]byte) error
	ClaimRemainder(namespace string, key [32]byte) (*big.Int, error)
	SetClaimRemainder(namespace string, key [32]byte, amount *big.Int) error
	HasRole(role string, addr []byte) bool
}

// Allocator disburses against the shared reward inventory.
type Allocator interface {
	Allocate(recipient [20]byte, requested *big.Int) (*big.Int, error)
}

// Ledger validates Merkle claims and settles them through the allocator.
type Ledger struct {
	state     State
	allocator Allocator
	emitter   events.Emitter
	nowFn     func() int64
}

func NewLedger() *Ledger {
	return &Ledger{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state State) { l.state = state }

// SetAllocator configures the reward inventory allocator.
func (l *Ledger) SetAllocator(allocator Allocator) { l.allocator = allocator }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// AssetRewardLeaf derives the leaf hash for a per-asset reward claim.
func AssetRewardLeaf(site [20]byte, assetID uint64, amount *big.Int) [32]byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], assetID)
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(site[:], id[:], amountBytes(amount)))
	return out
}

// StakingPoolLeaf derives the leaf hash for a pool-level staking claim.
func StakingPoolLeaf(claimant [20]byte, amount *big.Int) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(claimant[:], amountBytes(amount)))
	return out
}

func amountBytes(amount *big.Int) []byte {
	buf := make([]byte, 32)
	if amount != nil {
		amount.FillBytes(buf)
	}
	return buf
}

// ClaimAssetReward settles a per-asset reward claim for the caller. Returns
// the amount actually disbursed; a partial fill leaves the key open for a
// repeat call covering only the recorded remainder.
func (l *Ledger) ClaimAssetReward(caller, site [20]byte, assetID uint64, amount *big.Int, proof [][32]byte) (*big.Int, error) {
	leaf := AssetRewardLeaf(site, assetID, amount)
	return l.settle(NamespaceAssetRewards, caller, leaf, amount, proof)
}

// ClaimStakingPool settles a pool-level staking claim for the caller.
func (l *Ledger) ClaimStakingPool(caller [20]byte, amount *big.Int, proof [][32]byte) (*big.Int, error) {
	leaf := StakingPoolLeaf(caller, amount)
	return l.settle(NamespaceStakingPool, caller, leaf, amount, proof)
}

func (l *Ledger) settle(namespace string, claimant [20]byte, leaf [32]byte, amount *big.Int, proof [][32]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	if l.allocator == nil {
		return nil, ErrNilAllocator
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	root, ok, err := l.state.ClaimRoot(namespace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoRoot
	}
	consumed, err := l.state.ClaimConsumed(namespace, leaf)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, ErrAlreadyClaimed
	}
	if !merkle.Verify(root, leaf, proof) {
		return nil, ErrInvalidProof
	}
	owed, err := l.state.ClaimRemainder(namespace, leaf)
	if err != nil {
		return nil, err
	}
	if owed == nil || owed.Sign() == 0 {
		owed = new(big.Int).Set(amount)
	}
	paid, err := l.allocator.Allocate(claimant, owed)
	if err != nil {
		return nil, err
	}
	remainder := new(big.Int).Sub(owed, paid)
	if remainder.Sign() == 0 {
		if err := l.state.SetClaimConsumed(namespace, leaf); err != nil {
			return nil, err
		}
		if err := l.state.SetClaimRemainder(namespace, leaf, big.NewInt(0)); err != nil {
			return nil, err
		}
	} else if paid.Sign() > 0 {
		if err := l.state.SetClaimRemainder(namespace, leaf, remainder); err != nil {
			return nil, err
		}
	}
	l.emitter.Emit(events.MerkleClaimed{
		Namespace: namespace,
		Key:       leaf,
		Claimant:  claimant,
		Owed:      owed,
		Paid:      paid,
		Remainder: remainder,
		Timestamp: l.nowFn(),
	})
	return paid, nil
}

// SetRoot installs a namespace root (admin).
func (l *Ledger) SetRoot(caller [20]byte, namespace string, root [32]byte) error {
	if l.state == nil {
		return ErrNilState
	}
	if !l.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return l.state.SetClaimRoot(namespace, root)
}

// ClearRoot removes a namespace root, disabling claims in that namespace.
func (l *Ledger) ClearRoot(caller [20]byte, namespace string) error {
	if l.state == nil {
		return ErrNilState
	}
	if !l.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return l.state.ClearClaimRoot(namespace)
}
