package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/state"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps ledger sentinels onto HTTP statuses; anything unrecognized is
// treated as an internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, staking.ErrUnauthorized),
		errors.Is(err, staking.ErrNotAssetOwner),
		errors.Is(err, staking.ErrNotStakeOwner),
		errors.Is(err, staking.ErrNotPlotOwner),
		errors.Is(err, inventory.ErrUnauthorized),
		errors.Is(err, claims.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, state.ErrUnknownAsset),
		errors.Is(err, state.ErrUnknownPlot):
		return http.StatusNotFound
	case errors.Is(err, staking.ErrAlreadyStaked),
		errors.Is(err, staking.ErrNotLocked),
		errors.Is(err, staking.ErrNotStaked),
		errors.Is(err, staking.ErrClaimNotDue),
		errors.Is(err, staking.ErrPlotUnavailable),
		errors.Is(err, claims.ErrAlreadyClaimed),
		errors.Is(err, claims.ErrNoRoot):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, staking.ErrBatchLengthMismatch),
		errors.Is(err, staking.ErrUnrecognizedTier),
		errors.Is(err, inventory.ErrEmptyPackage),
		errors.Is(err, inventory.ErrLengthMismatch),
		errors.Is(err, inventory.ErrNonPositiveAmount),
		errors.Is(err, inventory.ErrNonPositiveClaim),
		errors.Is(err, inventory.ErrCursorRegression),
		errors.Is(err, inventory.ErrCursorOutOfRange),
		errors.Is(err, inventory.ErrNegativeTotal),
		errors.Is(err, claims.ErrInvalidProof),
		errors.Is(err, claims.ErrZeroAmount),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrNonPositiveAmount),
		errors.Is(err, state.ErrBatchLengthMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func parseAddr(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 20 {
		return out, badRequest("invalid address %q", value)
	}
	copy(out[:], raw)
	return out, nil
}

func parseAddrs(values []string) ([][20]byte, error) {
	out := make([][20]byte, len(values))
	for i, value := range values {
		addr, err := parseAddr(value)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func parseHash(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 32 {
		return out, badRequest("invalid 32-byte hash %q", value)
	}
	copy(out[:], raw)
	return out, nil
}

func parseProof(values []string) ([][32]byte, error) {
	out := make([][32]byte, len(values))
	for i, value := range values {
		hash, err := parseHash(value)
		if err != nil {
			return nil, err
		}
		out[i] = hash
	}
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, badRequest("invalid amount %q", value)
	}
	return amount, nil
}

func parseAmounts(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, value := range values {
		amount, err := parseAmount(value)
		if err != nil {
			return nil, err
		}
		out[i] = amount
	}
	return out, nil
}

func formatAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
