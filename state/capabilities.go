package state

import (
	"encoding/hex"
	"fmt"

	"aurora/native/staking"
)

// Assets exposes the store as the staking engine's asset-ownership
// capability.
func (s *Store) Assets() staking.AssetRegistry { return assetRegistry{s} }

// Plots exposes the store as the staking engine's plot capability. The
// adapter resolves the OwnerOf name clash between the asset and plot views.
func (s *Store) Plots() staking.PlotRegistry { return plotRegistry{s} }

type assetRegistry struct{ s *Store }

func (a assetRegistry) OwnerOf(collection [20]byte, assetID uint64) ([20]byte, error) {
	return a.s.OwnerOf(collection, assetID)
}

func (a assetRegistry) IsApprovedForAll(collection, owner, operator [20]byte) bool {
	return a.s.IsApprovedForAll(collection, owner, operator)
}

func (a assetRegistry) TotalSupply(collection [20]byte) (uint64, error) {
	return a.s.TotalSupply(collection)
}

type plotRegistry struct{ s *Store }

func (p plotRegistry) IsAvailable(plotID uint64) (bool, error) {
	return p.s.IsAvailable(plotID)
}

func (p plotRegistry) OwnerOf(plotID uint64) ([20]byte, error) {
	return p.s.PlotOwnerOf(plotID)
}

func (p plotRegistry) IncrementCapacity(plotID uint64) error {
	return p.s.IncrementCapacity(plotID)
}

func (p plotRegistry) DecrementCapacity(plotID uint64) error {
	return p.s.DecrementCapacity(plotID)
}

func encodeHex20(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func decodeHex20(encoded string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != 20 {
		return out, fmt.Errorf("state: corrupt address %q", encoded)
	}
	copy(out[:], raw)
	return out, nil
}

func encodeHex32(value [32]byte) string {
	return hex.EncodeToString(value[:])
}

func decodeHex32(encoded string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("state: corrupt hash %q", encoded)
	}
	copy(out[:], raw)
	return out, nil
}
