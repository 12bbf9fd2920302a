package server

import (
	"net/http"

	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/state"
)

// Seeding and role management ride on ROLE_STAKING_ADMIN; engine-level admin
// endpoints defer to the engines' own role checks.

func (s *Server) requireAdmin(caller [20]byte) error {
	if !s.store.HasRole(staking.RoleAdmin, caller[:]) {
		return staking.ErrUnauthorized
	}
	return nil
}

type roleRequest struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, "grant-role", func(store *state.Store, role string, addr [20]byte) error {
		return store.GrantRole(role, addr)
	})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, "revoke-role", func(store *state.Store, role string, addr [20]byte) error {
		return store.RevokeRole(role, addr)
	})
}

func (s *Server) handleRoleChange(w http.ResponseWriter, r *http.Request, op string, apply func(*state.Store, string, [20]byte) error) {
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	subject, err := parseAddr(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Role == "" {
		writeError(w, badRequest("role is required"))
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate(op, func(_ *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, staged *state.Store) error {
		return apply(staged, req.Role, subject)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type merkleRootRequest struct {
	Caller    string `json:"caller"`
	Namespace string `json:"namespace"`
	Root      string `json:"root,omitempty"`
}

func (s *Server) handleSetMerkleRoot(w http.ResponseWriter, r *http.Request) {
	var req merkleRootRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	root, err := parseHash(req.Root)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("set-merkle-root", func(_ *staking.Engine, _ *inventory.Engine, ledger *claims.Ledger, _ *state.Store) error {
		return ledger.SetRoot(caller, req.Namespace, root)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearMerkleRoot(w http.ResponseWriter, r *http.Request) {
	var req merkleRootRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("clear-merkle-root", func(_ *staking.Engine, _ *inventory.Engine, ledger *claims.Ledger, _ *state.Store) error {
		return ledger.ClearRoot(caller, req.Namespace)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type maxIDsRequest struct {
	Caller string `json:"caller"`
	MaxIDs int    `json:"maxIds"`
}

func (s *Server) handleSetMaxIDs(w http.ResponseWriter, r *http.Request) {
	var req maxIDsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("set-max-ids", func(_ *staking.Engine, allocator *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		if err := allocator.TuneMaxIDs(caller, req.MaxIDs); err != nil {
			return err
		}
		s.maxIDs = req.MaxIDs
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"maxIds": req.MaxIDs})
}

type cursorRequest struct {
	Caller string `json:"caller"`
	Index  uint64 `json:"index"`
}

func (s *Server) handleForceAdvanceOldest(w http.ResponseWriter, r *http.Request) {
	var req cursorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("force-advance-oldest", func(_ *staking.Engine, allocator *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return allocator.ForceAdvanceOldestIndex(caller, req.Index)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type totalRequest struct {
	Caller string `json:"caller"`
	Total  string `json:"total"`
}

func (s *Server) handleForceSetTotalAvailable(w http.ResponseWriter, r *http.Request) {
	var req totalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := parseAmount(req.Total)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("force-set-total", func(_ *staking.Engine, allocator *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return allocator.ForceSetTotalAvailable(caller, total)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type feeReceiverRequest struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
}

func (s *Server) handleSetFeeReceiver(w http.ResponseWriter, r *http.Request) {
	var req feeReceiverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	receiver, err := parseAddr(req.Receiver)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("set-fee-receiver", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		if err := engine.SetFeeReceiver(caller, receiver); err != nil {
			return err
		}
		s.params = engine.Params()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tierRequest struct {
	Caller      string `json:"caller"`
	PlotAddress string `json:"plotAddress"`
	Bps         uint64 `json:"bps"`
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	plotAddress, err := parseAddr(req.PlotAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("set-tier", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		if err := engine.SetTierBps(caller, plotAddress, req.Bps); err != nil {
			return err
		}
		s.params = engine.Params()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type dailyRateRequest struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

func (s *Server) handleSetDailyRate(w http.ResponseWriter, r *http.Request) {
	var req dailyRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	rate, err := parseAmount(req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("set-daily-rate", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		if err := engine.SetDailyRate(caller, rate); err != nil {
			return err
		}
		s.params = engine.Params()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sqrtPriceRequest struct {
	Caller       string `json:"caller"`
	SqrtPriceX96 string `json:"sqrtPriceX96"`
}

func (s *Server) handleSetSqrtPrice(w http.ResponseWriter, r *http.Request) {
	var req sqrtPriceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	price, err := parseAmount(req.SqrtPriceX96)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.feed.Publish(price); err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type collateralTargetRequest struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
}

func (s *Server) handleSetCollateralTarget(w http.ResponseWriter, r *http.Request) {
	var req collateralTargetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	target, err := parseAmount(req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.calc.SetTargetFiat(target)
	s.mu.Unlock()
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerAssetRequest struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Owner      string `json:"owner"`
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	collection, err := parseAddr(req.Collection)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddr(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("register-asset", func(_ *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, staged *state.Store) error {
		return staged.RegisterAsset(collection, req.AssetID, owner)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type approvalRequest struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	Operator   string `json:"operator"`
	Approved   bool   `json:"approved"`
}

// handleSetApproval is self-service: the caller approves (or revokes) an
// operator over all of their own assets in the collection.
func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	collection, err := parseAddr(req.Collection)
	if err != nil {
		writeError(w, err)
		return
	}
	operator, err := parseAddr(req.Operator)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("set-approval", func(_ *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, staged *state.Store) error {
		return staged.SetApprovalForAll(collection, caller, operator, req.Approved)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerPlotRequest struct {
	Caller   string `json:"caller"`
	PlotID   uint64 `json:"plotId"`
	Owner    string `json:"owner"`
	Capacity int    `json:"capacity"`
}

func (s *Server) handleRegisterPlot(w http.ResponseWriter, r *http.Request) {
	var req registerPlotRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddr(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	if req.Capacity <= 0 {
		writeError(w, badRequest("capacity must be positive"))
		return
	}
	err = s.mutate("register-plot", func(_ *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, staged *state.Store) error {
		return staged.RegisterPlot(req.PlotID, owner, req.Capacity)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type mintDepositRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleMintDeposit(w http.ResponseWriter, r *http.Request) {
	var req mintDepositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddr(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("mint-deposit", func(_ *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, staged *state.Store) error {
		return staged.MintDeposit(recipient, amount)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type mintRewardsRequest struct {
	Caller  string   `json:"caller"`
	Address string   `json:"address"`
	IDs     []uint64 `json:"ids"`
	Amounts []string `json:"amounts"`
}

func (s *Server) handleMintRewards(w http.ResponseWriter, r *http.Request) {
	var req mintRewardsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddr(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	amounts, err := parseAmounts(req.Amounts)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("mint-rewards", func(_ *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, staged *state.Store) error {
		return staged.MintRewards(recipient, req.IDs, amounts)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
