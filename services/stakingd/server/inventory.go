package server

import (
	"io"
	"math/big"
	"net/http"

	"gopkg.in/yaml.v3"

	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/state"
)

type depositRequest struct {
	Manager string   `json:"manager"`
	IDs     []uint64 `json:"ids"`
	Amounts []string `json:"amounts"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	manager, err := parseAddr(req.Manager)
	if err != nil {
		writeError(w, err)
		return
	}
	amounts, err := parseAmounts(req.Amounts)
	if err != nil {
		writeError(w, err)
		return
	}
	s.deposit(w, manager, req.IDs, amounts)
}

// depositManifest is the YAML batch format operators upload out of band.
type depositManifest struct {
	Manager string `yaml:"manager"`
	Entries []struct {
		ID     uint64 `yaml:"id"`
		Amount string `yaml:"amount"`
	} `yaml:"entries"`
}

func (s *Server) handleDepositManifest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, badRequest("read manifest: %v", err))
		return
	}
	var manifest depositManifest
	if err := yaml.Unmarshal(body, &manifest); err != nil {
		writeError(w, badRequest("decode manifest: %v", err))
		return
	}
	manager, err := parseAddr(manifest.Manager)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]uint64, len(manifest.Entries))
	amounts := make([]*big.Int, len(manifest.Entries))
	for i, entry := range manifest.Entries {
		amount, err := parseAmount(entry.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		ids[i] = entry.ID
		amounts[i] = amount
	}
	s.deposit(w, manager, ids, amounts)
}

func (s *Server) deposit(w http.ResponseWriter, manager [20]byte, ids []uint64, amounts []*big.Int) {
	var index uint64
	err := s.mutate("deposit", func(_ *staking.Engine, allocator *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		var depErr error
		index, depErr = allocator.Deposit(manager, ids, amounts)
		return depErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"packageIndex": index})
}

func (s *Server) handleInventoryStatus(w http.ResponseWriter, r *http.Request) {
	var status inventory.Status
	err := s.query(func(_ *staking.Engine, allocator *inventory.Engine, _ *claims.Ledger) error {
		var qerr error
		status, qerr = allocator.Status()
		return qerr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalAvailable":      status.TotalAvailable.String(),
		"packageCount":        status.PackageCount,
		"oldestNonEmptyIndex": status.OldestNonEmptyIdx,
		"maxIdsPerAllocation": status.MaxIDsPerAllocation,
	})
}
