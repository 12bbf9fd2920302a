package staking

import "math/big"

// Batch variants apply the single-item operation sequentially over parallel
// arrays. A length mismatch across any pair of arrays fails the whole batch
// before any item runs; item failures abort the batch and the caller's state
// overlay discards the partial writes.

// LockMultiple locks a batch of assets.
func (e *Engine) LockMultiple(caller [20]byte, collections [][20]byte, assetIDs []uint64) error {
	if len(collections) != len(assetIDs) {
		return ErrBatchLengthMismatch
	}
	for i := range collections {
		if err := e.Lock(caller, collections[i], assetIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

// UnlockMultiple unlocks a batch of assets.
func (e *Engine) UnlockMultiple(caller [20]byte, collections [][20]byte, assetIDs []uint64) error {
	if len(collections) != len(assetIDs) {
		return ErrBatchLengthMismatch
	}
	for i := range collections {
		if err := e.Unlock(caller, collections[i], assetIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

// StakeMultiple stakes a batch of assets onto their plots.
func (e *Engine) StakeMultiple(caller [20]byte, collections [][20]byte, assetIDs, plotIDs []uint64, plotAddresses [][20]byte) error {
	if len(collections) != len(assetIDs) ||
		len(collections) != len(plotIDs) ||
		len(collections) != len(plotAddresses) {
		return ErrBatchLengthMismatch
	}
	for i := range collections {
		if err := e.Stake(caller, collections[i], assetIDs[i], plotIDs[i], plotAddresses[i]); err != nil {
			return err
		}
	}
	return nil
}

// UnstakeMultiple unstakes a batch of assets.
func (e *Engine) UnstakeMultiple(caller [20]byte, collections [][20]byte, assetIDs []uint64, autoUnlock bool) error {
	if len(collections) != len(assetIDs) {
		return ErrBatchLengthMismatch
	}
	for i := range collections {
		if err := e.Unstake(caller, collections[i], assetIDs[i], autoUnlock); err != nil {
			return err
		}
	}
	return nil
}

// ClaimMultiple claims rewards for a batch of assets and returns the total
// disbursed.
func (e *Engine) ClaimMultiple(caller [20]byte, collections [][20]byte, assetIDs []uint64) (*big.Int, error) {
	if len(collections) != len(assetIDs) {
		return nil, ErrBatchLengthMismatch
	}
	total := big.NewInt(0)
	for i := range collections {
		paid, err := e.Claim(caller, collections[i], assetIDs[i])
		if err != nil {
			return nil, err
		}
		total.Add(total, paid)
	}
	return total, nil
}
