package server

import (
	"math/big"
	"net/http"

	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/state"
)

type assetRewardClaimRequest struct {
	Caller  string   `json:"caller"`
	Site    string   `json:"site"`
	AssetID uint64   `json:"assetId"`
	Amount  string   `json:"amount"`
	Proof   []string `json:"proof"`
}

type poolClaimRequest struct {
	Caller string   `json:"caller"`
	Amount string   `json:"amount"`
	Proof  []string `json:"proof"`
}

func (s *Server) handleClaimAssetReward(w http.ResponseWriter, r *http.Request) {
	var req assetRewardClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	site, err := parseAddr(req.Site)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(w, err)
		return
	}
	var paid *big.Int
	err = s.mutate("claim-asset-reward", func(_ *staking.Engine, _ *inventory.Engine, ledger *claims.Ledger, _ *state.Store) error {
		var claimErr error
		paid, claimErr = ledger.ClaimAssetReward(caller, site, req.AssetID, amount, proof)
		return claimErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

func (s *Server) handleClaimStakingPool(w http.ResponseWriter, r *http.Request) {
	var req poolClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(w, err)
		return
	}
	var paid *big.Int
	err = s.mutate("claim-staking-pool", func(_ *staking.Engine, _ *inventory.Engine, ledger *claims.Ledger, _ *state.Store) error {
		var claimErr error
		paid, claimErr = ledger.ClaimStakingPool(caller, amount, proof)
		return claimErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}
