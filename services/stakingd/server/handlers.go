package server

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/state"
)

type assetRequest struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
}

type stakeRequest struct {
	Caller      string `json:"caller"`
	Collection  string `json:"collection"`
	AssetID     uint64 `json:"assetId"`
	PlotID      uint64 `json:"plotId"`
	PlotAddress string `json:"plotAddress"`
}

type unstakeRequest struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	AutoUnlock bool   `json:"autoUnlock"`
}

type assetBatchRequest struct {
	Caller      string   `json:"caller"`
	Collections []string `json:"collections"`
	AssetIDs    []uint64 `json:"assetIds"`
}

type stakeBatchRequest struct {
	Caller        string   `json:"caller"`
	Collections   []string `json:"collections"`
	AssetIDs      []uint64 `json:"assetIds"`
	PlotIDs       []uint64 `json:"plotIds"`
	PlotAddresses []string `json:"plotAddresses"`
}

type unstakeBatchRequest struct {
	Caller      string   `json:"caller"`
	Collections []string `json:"collections"`
	AssetIDs    []uint64 `json:"assetIds"`
	AutoUnlock  bool     `json:"autoUnlock"`
}

func (r assetRequest) decode() (caller, collection [20]byte, err error) {
	if caller, err = parseAddr(r.Caller); err != nil {
		return
	}
	collection, err = parseAddr(r.Collection)
	return
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, collection, err := req.decode()
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("lock", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return engine.Lock(caller, collection, req.AssetID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, collection, err := req.decode()
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("unlock", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return engine.Unlock(caller, collection, req.AssetID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
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
	plotAddress, err := parseAddr(req.PlotAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("stake", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return engine.Stake(caller, collection, req.AssetID, req.PlotID, plotAddress)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "staked"})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req unstakeRequest
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
	err = s.mutate("unstake", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return engine.Unstake(caller, collection, req.AssetID, req.AutoUnlock)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unstaked"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, collection, err := req.decode()
	if err != nil {
		writeError(w, err)
		return
	}
	var paid *big.Int
	err = s.mutate("claim", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		var claimErr error
		paid, claimErr = engine.Claim(caller, collection, req.AssetID)
		return claimErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

func (s *Server) handleLockBatch(w http.ResponseWriter, r *http.Request) {
	s.handleAssetBatch(w, r, "lock-batch", func(engine *staking.Engine, caller [20]byte, collections [][20]byte, assetIDs []uint64) error {
		return engine.LockMultiple(caller, collections, assetIDs)
	})
}

func (s *Server) handleUnlockBatch(w http.ResponseWriter, r *http.Request) {
	s.handleAssetBatch(w, r, "unlock-batch", func(engine *staking.Engine, caller [20]byte, collections [][20]byte, assetIDs []uint64) error {
		return engine.UnlockMultiple(caller, collections, assetIDs)
	})
}

func (s *Server) handleAssetBatch(w http.ResponseWriter, r *http.Request, op string, run func(*staking.Engine, [20]byte, [][20]byte, []uint64) error) {
	var req assetBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	collections, err := parseAddrs(req.Collections)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate(op, func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return run(engine, caller, collections, req.AssetIDs)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(req.AssetIDs)})
}

func (s *Server) handleStakeBatch(w http.ResponseWriter, r *http.Request) {
	var req stakeBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	collections, err := parseAddrs(req.Collections)
	if err != nil {
		writeError(w, err)
		return
	}
	plotAddresses, err := parseAddrs(req.PlotAddresses)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("stake-batch", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return engine.StakeMultiple(caller, collections, req.AssetIDs, req.PlotIDs, plotAddresses)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(req.AssetIDs)})
}

func (s *Server) handleUnstakeBatch(w http.ResponseWriter, r *http.Request) {
	var req unstakeBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	collections, err := parseAddrs(req.Collections)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.mutate("unstake-batch", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		return engine.UnstakeMultiple(caller, collections, req.AssetIDs, req.AutoUnlock)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(req.AssetIDs)})
}

func (s *Server) handleClaimBatch(w http.ResponseWriter, r *http.Request) {
	var req assetBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	collections, err := parseAddrs(req.Collections)
	if err != nil {
		writeError(w, err)
		return
	}
	var total *big.Int
	err = s.mutate("claim-batch", func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger, _ *state.Store) error {
		var claimErr error
		total, claimErr = engine.ClaimMultiple(caller, collections, req.AssetIDs)
		return claimErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": total.String()})
}

type stakeView struct {
	Owner           string `json:"owner"`
	Locked          bool   `json:"locked"`
	Staked          bool   `json:"staked"`
	LockedAmount    string `json:"lockedAmount"`
	StakingTime     int64  `json:"stakingTime"`
	LastClaimTime   int64  `json:"lastClaimTime"`
	RemainingReward string `json:"remainingReward"`
	PlotID          uint64 `json:"plotId"`
	PlotAddress     string `json:"plotAddress"`
}

func (s *Server) pathAsset(r *http.Request) ([20]byte, uint64, error) {
	collection, err := parseAddr(chi.URLParam(r, "collection"))
	if err != nil {
		return [20]byte{}, 0, err
	}
	assetID, err := strconv.ParseUint(chi.URLParam(r, "assetID"), 10, 64)
	if err != nil {
		return [20]byte{}, 0, badRequest("invalid asset id")
	}
	return collection, assetID, nil
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	collection, assetID, err := s.pathAsset(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var (
		stake *staking.Stake
		ok    bool
	)
	err = s.query(func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger) error {
		var qerr error
		stake, ok, qerr = engine.GetStake(collection, assetID)
		return qerr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no stake record"})
		return
	}
	writeJSON(w, http.StatusOK, stakeView{
		Owner:           formatAddr(stake.Owner),
		Locked:          stake.Locked,
		Staked:          stake.Staked,
		LockedAmount:    stake.LockedAmount.String(),
		StakingTime:     stake.StakingTime,
		LastClaimTime:   stake.LastClaimTime,
		RemainingReward: stake.RemainingReward.String(),
		PlotID:          stake.PlotID,
		PlotAddress:     formatAddr(stake.PlotAddress),
	})
}

func (s *Server) handlePendingReward(w http.ResponseWriter, r *http.Request) {
	collection, assetID, err := s.pathAsset(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var pending *big.Int
	err = s.query(func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger) error {
		var qerr error
		pending, qerr = engine.PendingReward(collection, assetID)
		return qerr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pending": pending.String()})
}

func (s *Server) handleCarryOver(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddr(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	var carry *big.Int
	err = s.query(func(engine *staking.Engine, _ *inventory.Engine, _ *claims.Ledger) error {
		var qerr error
		carry, qerr = engine.CarryOver(addr)
		return qerr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"carryOver": carry.String()})
}

func (s *Server) handleCollateral(w http.ResponseWriter, r *http.Request) {
	// The admin surface retunes the calculator under the write lock.
	s.mu.RLock()
	price, err := s.calc.SpotPrice()
	var required, target *big.Int
	if err == nil {
		required, err = s.calc.RequiredDeposit()
		target = s.calc.TargetFiat()
	}
	s.mu.RUnlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"spotPrice":       price.String(),
		"requiredDeposit": required.String(),
		"targetFiat":      target.String(),
	})
}
