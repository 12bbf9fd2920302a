package inventory

import (
	"fmt"
	"math/big"
	"time"

	"aurora/core/events"
)

// State is the narrow view of the ledger the allocator mutates. Packages are
// append-only; the oldest-non-empty index and total-available counter are the
// shared queue bookkeeping described in the data model.
type State interface {
	InventoryPackage(index uint64) (*Package, bool, error)
	InventoryPutPackage(index uint64, pkg *Package) error
	InventoryPackageCount() (uint64, error)
	InventorySetPackageCount(count uint64) error
	InventoryTotalAvailable() (*big.Int, error)
	InventorySetTotalAvailable(total *big.Int) error
	InventoryOldestIndex() (uint64, error)
	InventorySetOldestIndex(index uint64) error
	HasRole(role string, addr []byte) bool
}

// RewardToken moves batches of (id, amount) pairs between custodial accounts.
type RewardToken interface {
	BatchTransfer(from, to [20]byte, ids []uint64, amounts []*big.Int) error
}

// Engine owns the package queue and fulfils claim requests in FIFO order
// under the MaxIDs work bound.
type Engine struct {
	state      State
	token      RewardToken
	pool       [20]byte
	maxIDs     int
	allocating bool
	emitter    events.Emitter
	nowFn      func() int64
}

func NewEngine() *Engine {
	return &Engine{
		maxIDs:  DefaultMaxIDs,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetRewardToken configures the reward-token capability.
func (e *Engine) SetRewardToken(token RewardToken) { e.token = token }

// SetPoolAddress configures the custodial account packages are held under.
func (e *Engine) SetPoolAddress(pool [20]byte) { e.pool = pool }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock, for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetMaxIDs configures the per-allocation entry cap. Non-positive values are
// ignored and leave the default in place.
func (e *Engine) SetMaxIDs(maxIDs int) {
	if maxIDs > 0 {
		e.maxIDs = maxIDs
	}
}

// MaxIDs reports the per-allocation entry cap.
func (e *Engine) MaxIDs() int { return e.maxIDs }

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Deposit pulls a reward batch into pool custody and appends it to the queue.
// Returns the index assigned to the new package.
func (e *Engine) Deposit(manager [20]byte, ids []uint64, amounts []*big.Int) (uint64, error) {
	if e.state == nil {
		return 0, ErrNilState
	}
	if e.token == nil {
		return 0, ErrNilToken
	}
	if !e.state.HasRole(RoleManager, manager[:]) {
		return 0, ErrUnauthorized
	}
	if len(ids) == 0 {
		return 0, ErrEmptyPackage
	}
	if len(ids) != len(amounts) {
		return 0, ErrLengthMismatch
	}
	sum := big.NewInt(0)
	for i, amt := range amounts {
		if amt == nil || amt.Sign() <= 0 {
			return 0, fmt.Errorf("%w: entry %d", ErrNonPositiveAmount, i)
		}
		sum.Add(sum, amt)
	}
	if err := e.token.BatchTransfer(manager, e.pool, ids, amounts); err != nil {
		return 0, err
	}
	count, err := e.state.InventoryPackageCount()
	if err != nil {
		return 0, err
	}
	pkg := &Package{IDs: append([]uint64(nil), ids...), Amounts: make([]*big.Int, len(amounts))}
	for i, amt := range amounts {
		pkg.Amounts[i] = new(big.Int).Set(amt)
	}
	if err := e.state.InventoryPutPackage(count, pkg); err != nil {
		return 0, err
	}
	if err := e.state.InventorySetPackageCount(count + 1); err != nil {
		return 0, err
	}
	total, err := e.state.InventoryTotalAvailable()
	if err != nil {
		return 0, err
	}
	if err := e.state.InventorySetTotalAvailable(new(big.Int).Add(total, sum)); err != nil {
		return 0, err
	}
	e.emit(events.PackageDeposited{
		Manager:      manager,
		PackageIndex: count,
		Entries:      len(ids),
		Total:        sum,
		Timestamp:    e.now(),
	})
	return count, nil
}

// allocation accumulates the pass-2 output arrays.
type allocation struct {
	ids     []uint64
	amounts []*big.Int
	total   *big.Int
}

// traverse walks the queue from the oldest non-empty package, consuming up to
// requested across at most maxIDs positive entries. Both allocation passes
// run through this one function so their visit order cannot diverge; commit
// selects between the sizing pass (no writes) and the commit pass.
func (e *Engine) traverse(requested *big.Int, commit bool, out *allocation) (int, error) {
	start, err := e.state.InventoryOldestIndex()
	if err != nil {
		return 0, err
	}
	count, err := e.state.InventoryPackageCount()
	if err != nil {
		return 0, err
	}
	remaining := new(big.Int).Set(requested)
	slots := 0
	for index := start; index < count && remaining.Sign() > 0 && slots < e.maxIDs; index++ {
		pkg, ok, err := e.state.InventoryPackage(index)
		if err != nil {
			return slots, err
		}
		if !ok {
			return slots, fmt.Errorf("inventory: package %d missing", index)
		}
		dirty := false
		for i := pkg.Cursor; i < len(pkg.IDs) && remaining.Sign() > 0 && slots < e.maxIDs; i++ {
			balance := pkg.Amounts[i]
			if balance == nil || balance.Sign() == 0 {
				// Already-zero entries are skipped without consuming a slot.
				if commit && i == pkg.Cursor {
					pkg.Cursor = i + 1
					dirty = true
				}
				continue
			}
			take := new(big.Int).Set(balance)
			if take.Cmp(remaining) > 0 {
				take.Set(remaining)
			}
			if commit {
				out.ids = append(out.ids, pkg.IDs[i])
				out.amounts = append(out.amounts, take)
				out.total.Add(out.total, take)
				pkg.Amounts[i] = new(big.Int).Sub(balance, take)
				if pkg.Amounts[i].Sign() == 0 && i == pkg.Cursor {
					pkg.Cursor = i + 1
				}
				dirty = true
			}
			remaining.Sub(remaining, take)
			slots++
		}
		if commit && dirty {
			if err := e.state.InventoryPutPackage(index, pkg); err != nil {
				return slots, err
			}
		}
	}
	return slots, nil
}

// Allocate fulfils up to requested from the queue and transfers the result to
// recipient in one batch. Partial fulfilment is a successful outcome; the
// return value is exactly the amount transferred.
func (e *Engine) Allocate(recipient [20]byte, requested *big.Int) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	if e.token == nil {
		return nil, ErrNilToken
	}
	if requested == nil || requested.Sign() <= 0 {
		return nil, ErrNonPositiveClaim
	}
	if e.allocating {
		return nil, ErrReentrantAllocate
	}
	e.allocating = true
	defer func() { e.allocating = false }()

	// Pass 1: size the output arrays without touching storage.
	slots, err := e.traverse(requested, false, nil)
	if err != nil {
		return nil, err
	}
	if slots == 0 {
		e.emit(events.BatchDisbursed{
			Recipient: recipient,
			Requested: new(big.Int).Set(requested),
			Claimed:   big.NewInt(0),
			Entries:   0,
			Partial:   true,
			Timestamp: e.now(),
		})
		return big.NewInt(0), nil
	}

	out := &allocation{
		ids:     make([]uint64, 0, slots),
		amounts: make([]*big.Int, 0, slots),
		total:   big.NewInt(0),
	}
	// Pass 2: identical walk, this time committing balances and cursors.
	if _, err := e.traverse(requested, true, out); err != nil {
		return nil, err
	}
	if err := e.token.BatchTransfer(e.pool, recipient, out.ids, out.amounts); err != nil {
		return nil, err
	}
	total, err := e.state.InventoryTotalAvailable()
	if err != nil {
		return nil, err
	}
	if err := e.state.InventorySetTotalAvailable(new(big.Int).Sub(total, out.total)); err != nil {
		return nil, err
	}
	if err := e.advanceOldestIndex(); err != nil {
		return nil, err
	}
	e.emit(events.BatchDisbursed{
		Recipient: recipient,
		Requested: new(big.Int).Set(requested),
		Claimed:   new(big.Int).Set(out.total),
		Entries:   len(out.ids),
		Partial:   out.total.Cmp(requested) < 0,
		Timestamp: e.now(),
	})
	return new(big.Int).Set(out.total), nil
}

// advanceOldestIndex moves the queue cursor past fully drained packages only.
// A package holding a single residual entry keeps the cursor pinned, so its
// exhausted prefix is re-skipped on every later call.
func (e *Engine) advanceOldestIndex() error {
	oldest, err := e.state.InventoryOldestIndex()
	if err != nil {
		return err
	}
	count, err := e.state.InventoryPackageCount()
	if err != nil {
		return err
	}
	advanced := oldest
	for advanced < count {
		pkg, ok, err := e.state.InventoryPackage(advanced)
		if err != nil {
			return err
		}
		if !ok || !pkg.Drained() {
			break
		}
		advanced++
	}
	if advanced == oldest {
		return nil
	}
	return e.state.InventorySetOldestIndex(advanced)
}

// Status reports the queue totals for queries.
func (e *Engine) Status() (Status, error) {
	if e.state == nil {
		return Status{}, ErrNilState
	}
	total, err := e.state.InventoryTotalAvailable()
	if err != nil {
		return Status{}, err
	}
	count, err := e.state.InventoryPackageCount()
	if err != nil {
		return Status{}, err
	}
	oldest, err := e.state.InventoryOldestIndex()
	if err != nil {
		return Status{}, err
	}
	return Status{
		TotalAvailable:      new(big.Int).Set(total),
		PackageCount:        count,
		OldestNonEmptyIdx:   oldest,
		MaxIDsPerAllocation: e.maxIDs,
	}, nil
}

// TuneMaxIDs retunes the per-allocation entry cap at runtime (admin).
func (e *Engine) TuneMaxIDs(caller [20]byte, maxIDs int) error {
	if e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if maxIDs <= 0 {
		return fmt.Errorf("inventory: max ids must be positive")
	}
	e.maxIDs = maxIDs
	return nil
}

// ForceAdvanceOldestIndex overrides the queue cursor (admin recovery). The
// cursor may only move forward and never beyond the package count.
func (e *Engine) ForceAdvanceOldestIndex(caller [20]byte, index uint64) error {
	if e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	oldest, err := e.state.InventoryOldestIndex()
	if err != nil {
		return err
	}
	if index < oldest {
		return ErrCursorRegression
	}
	count, err := e.state.InventoryPackageCount()
	if err != nil {
		return err
	}
	if index > count {
		return ErrCursorOutOfRange
	}
	return e.state.InventorySetOldestIndex(index)
}

// ForceSetTotalAvailable overrides the running total (admin recovery).
func (e *Engine) ForceSetTotalAvailable(caller [20]byte, total *big.Int) error {
	if e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if total == nil || total.Sign() < 0 {
		return ErrNegativeTotal
	}
	return e.state.InventorySetTotalAvailable(new(big.Int).Set(total))
}
