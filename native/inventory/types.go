package inventory

import (
	"errors"
	"math/big"
)

const (
	// RoleManager may deposit reward packages into the queue.
	RoleManager = "ROLE_INVENTORY_MANAGER"
	// RoleAdmin may tune MaxIDs and apply the recovery overrides.
	RoleAdmin = "ROLE_INVENTORY_ADMIN"
)

// DefaultMaxIDs bounds the distinct positive entries one allocation may touch.
const DefaultMaxIDs = 100

var (
	ErrNilState          = errors.New("inventory: state not configured")
	ErrNilToken          = errors.New("inventory: reward token not configured")
	ErrUnauthorized      = errors.New("inventory: caller lacks required role")
	ErrEmptyPackage      = errors.New("inventory: package must carry at least one entry")
	ErrLengthMismatch    = errors.New("inventory: ids and amounts length mismatch")
	ErrNonPositiveAmount = errors.New("inventory: package amounts must be positive")
	ErrNonPositiveClaim  = errors.New("inventory: requested amount must be positive")
	ErrReentrantAllocate = errors.New("inventory: allocation already in progress")
	ErrCursorRegression  = errors.New("inventory: oldest package cursor may only advance")
	ErrCursorOutOfRange  = errors.New("inventory: cursor beyond package count")
	ErrNegativeTotal     = errors.New("inventory: total available cannot be negative")
)

// Package is one deposited inventory batch. Entries at index < Cursor hold a
// zero balance; Cursor only increases and Amounts[i] only decreases.
type Package struct {
	IDs     []uint64   `json:"ids"`
	Amounts []*big.Int `json:"amounts"`
	Cursor  int        `json:"cursor"`
}

// Clone deep-copies the package so engine mutations never alias stored state.
func (p *Package) Clone() *Package {
	if p == nil {
		return nil
	}
	clone := &Package{
		IDs:     append([]uint64(nil), p.IDs...),
		Amounts: make([]*big.Int, len(p.Amounts)),
		Cursor:  p.Cursor,
	}
	for i, amt := range p.Amounts {
		if amt != nil {
			clone.Amounts[i] = new(big.Int).Set(amt)
		} else {
			clone.Amounts[i] = big.NewInt(0)
		}
	}
	return clone
}

// Drained reports whether every entry has been fully consumed.
func (p *Package) Drained() bool {
	return p == nil || p.Cursor >= len(p.IDs)
}

// Status summarises the queue for queries and the admin surface.
type Status struct {
	TotalAvailable      *big.Int `json:"totalAvailable"`
	PackageCount        uint64   `json:"packageCount"`
	OldestNonEmptyIdx   uint64   `json:"oldestNonEmptyPackageIndex"`
	MaxIDsPerAllocation int      `json:"maxIdsPerAllocation"`
}
