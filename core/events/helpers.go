package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func intString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func boolString(v bool) string {
	return strconv.FormatBool(v)
}
