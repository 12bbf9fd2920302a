package state

import (
	"encoding/hex"
	"strconv"
)

// Key layout, one prefix per record family. Values are JSON documents.
const (
	stakePrefix          = "staking/stake/"
	carryOverPrefix      = "staking/carry/"
	packagePrefix        = "inventory/package/"
	packageCountKey      = "inventory/packageCount"
	totalAvailableKey    = "inventory/totalAvailable"
	oldestIndexKey       = "inventory/oldestIndex"
	claimRootPrefix      = "claims/root/"
	claimConsumedPrefix  = "claims/consumed/"
	claimRemainderPrefix = "claims/remainder/"
	rolePrefix           = "roles/"
	depositBalancePrefix = "token/deposit/"
	rewardBalancePrefix  = "token/reward/"
	assetOwnerPrefix     = "assets/owner/"
	assetApprovalPrefix  = "assets/approval/"
	assetSupplyPrefix    = "assets/supply/"
	plotPrefix           = "plots/"
)

func addrHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func stakeKey(collection [20]byte, assetID uint64) []byte {
	return []byte(stakePrefix + addrHex(collection) + "/" + strconv.FormatUint(assetID, 10))
}

func carryOverKey(addr [20]byte) []byte {
	return []byte(carryOverPrefix + addrHex(addr))
}

func packageKey(index uint64) []byte {
	return []byte(packagePrefix + strconv.FormatUint(index, 10))
}

func claimRootKey(namespace string) []byte {
	return []byte(claimRootPrefix + namespace)
}

func claimConsumedKey(namespace string, key [32]byte) []byte {
	return []byte(claimConsumedPrefix + namespace + "/" + hex.EncodeToString(key[:]))
}

func claimRemainderKey(namespace string, key [32]byte) []byte {
	return []byte(claimRemainderPrefix + namespace + "/" + hex.EncodeToString(key[:]))
}

func roleKey(role string, addr []byte) []byte {
	return []byte(rolePrefix + role + "/" + hex.EncodeToString(addr))
}

func depositBalanceKey(addr [20]byte) []byte {
	return []byte(depositBalancePrefix + addrHex(addr))
}

func rewardBalanceKey(addr [20]byte, id uint64) []byte {
	return []byte(rewardBalancePrefix + addrHex(addr) + "/" + strconv.FormatUint(id, 10))
}

func assetOwnerKey(collection [20]byte, assetID uint64) []byte {
	return []byte(assetOwnerPrefix + addrHex(collection) + "/" + strconv.FormatUint(assetID, 10))
}

func assetApprovalKey(collection, owner, operator [20]byte) []byte {
	return []byte(assetApprovalPrefix + addrHex(collection) + "/" + addrHex(owner) + "/" + addrHex(operator))
}

func assetSupplyKey(collection [20]byte) []byte {
	return []byte(assetSupplyPrefix + addrHex(collection))
}

func plotKey(plotID uint64) []byte {
	return []byte(plotPrefix + strconv.FormatUint(plotID, 10))
}
