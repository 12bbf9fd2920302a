package server

import (
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aurora/core/pricing"
	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/observability/metrics"
	"aurora/state"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Store      *state.Store
	Params     staking.Params
	MaxIDs     int
	TargetFiat *big.Int
	Logger     *slog.Logger
	Now        func() int64
}

// Server exposes the stake lifecycle, the reward inventory, and the Merkle
// claim ledger over HTTP. Engines are rebuilt per request against a staged
// copy of the store; the overlay commits only when the operation succeeds, so
// every endpoint (including the batch variants) is all-or-nothing.
type Server struct {
	mu      sync.RWMutex
	store   *state.Store
	params  staking.Params
	maxIDs  int
	feed    *SettableFeed
	calc    *pricing.CollateralCalculator
	logger  *slog.Logger
	metrics *metrics.StakingMetrics
	now     func() int64

	router http.Handler
}

// New constructs a configured HTTP router around the given store.
func New(cfg Config) (*Server, error) {
	feed := NewSettableFeed()
	calc, err := pricing.NewCollateralCalculator(feed, cfg.TargetFiat)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		store:   cfg.Store,
		params:  cfg.Params,
		maxIDs:  cfg.MaxIDs,
		feed:    feed,
		calc:    calc,
		logger:  cfg.Logger,
		metrics: metrics.Staking(),
		now:     cfg.Now,
	}
	if srv.logger == nil {
		srv.logger = slog.Default()
	}
	if srv.now == nil {
		srv.now = func() int64 { return time.Now().Unix() }
	}
	if srv.maxIDs <= 0 {
		srv.maxIDs = inventory.DefaultMaxIDs
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Route("/staking", func(st chi.Router) {
			st.Post("/lock", s.handleLock)
			st.Post("/unlock", s.handleUnlock)
			st.Post("/stake", s.handleStake)
			st.Post("/unstake", s.handleUnstake)
			st.Post("/claim", s.handleClaim)
			st.Post("/lock-batch", s.handleLockBatch)
			st.Post("/unlock-batch", s.handleUnlockBatch)
			st.Post("/stake-batch", s.handleStakeBatch)
			st.Post("/unstake-batch", s.handleUnstakeBatch)
			st.Post("/claim-batch", s.handleClaimBatch)
			st.Get("/stakes/{collection}/{assetID}", s.handleGetStake)
			st.Get("/pending/{collection}/{assetID}", s.handlePendingReward)
			st.Get("/carry-over/{address}", s.handleCarryOver)
			st.Get("/collateral", s.handleCollateral)
		})
		api.Route("/inventory", func(inv chi.Router) {
			inv.Post("/deposit", s.handleDeposit)
			inv.Post("/deposit-manifest", s.handleDepositManifest)
			inv.Get("/status", s.handleInventoryStatus)
		})
		api.Route("/claims", func(cl chi.Router) {
			cl.Post("/asset-reward", s.handleClaimAssetReward)
			cl.Post("/staking-pool", s.handleClaimStakingPool)
		})
		api.Route("/admin", func(ad chi.Router) {
			ad.Post("/roles/grant", s.handleGrantRole)
			ad.Post("/roles/revoke", s.handleRevokeRole)
			ad.Post("/merkle-root", s.handleSetMerkleRoot)
			ad.Post("/merkle-root/clear", s.handleClearMerkleRoot)
			ad.Post("/max-ids", s.handleSetMaxIDs)
			ad.Post("/advance-oldest", s.handleForceAdvanceOldest)
			ad.Post("/total-available", s.handleForceSetTotalAvailable)
			ad.Post("/fee-receiver", s.handleSetFeeReceiver)
			ad.Post("/tiers", s.handleSetTier)
			ad.Post("/daily-rate", s.handleSetDailyRate)
			ad.Post("/sqrt-price", s.handleSetSqrtPrice)
			ad.Post("/collateral-target", s.handleSetCollateralTarget)
			ad.Post("/assets", s.handleRegisterAsset)
			ad.Post("/assets/approve", s.handleSetApproval)
			ad.Post("/plots", s.handleRegisterPlot)
			ad.Post("/mint-deposit", s.handleMintDeposit)
			ad.Post("/mint-rewards", s.handleMintRewards)
		})
	})
	return r
}

// requestID stamps every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// engines wires a full engine set against the given (usually staged) store.
// Events are buffered so a rolled-back operation logs nothing. Params are
// deep-copied so admin retunes on one engine never alias the server copy read
// by concurrent requests. Callers must hold s.mu (read or write).
func (s *Server) engines(store *state.Store, buffer *eventBuffer) (*staking.Engine, *inventory.Engine, *claims.Ledger) {
	allocator := inventory.NewEngine()
	allocator.SetState(store)
	allocator.SetRewardToken(store)
	allocator.SetPoolAddress(store.PoolAddress())
	allocator.SetMaxIDs(s.maxIDs)
	allocator.SetEmitter(buffer)
	allocator.SetNowFunc(s.now)

	engine := staking.NewEngine(s.params.Clone())
	engine.SetState(store)
	engine.SetDepositToken(store)
	engine.SetAssetRegistry(store.Assets())
	engine.SetPlotRegistry(store.Plots())
	engine.SetCollateralPricer(s.calc)
	engine.SetAllocator(allocator)
	engine.SetPoolAddress(store.PoolAddress())
	engine.SetEmitter(buffer)
	engine.SetNowFunc(s.now)

	ledger := claims.NewLedger()
	ledger.SetState(store)
	ledger.SetAllocator(allocator)
	ledger.SetEmitter(buffer)
	ledger.SetNowFunc(s.now)

	return engine, allocator, ledger
}

// query runs fn against a read-only engine set over the base store. The read
// lock is held for the whole call so queries never interleave with a commit or
// an in-place params retune.
func (s *Server) query(fn func(*staking.Engine, *inventory.Engine, *claims.Ledger) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	engine, allocator, ledger := s.engines(s.store, newEventBuffer())
	return fn(engine, allocator, ledger)
}

// mutate stages the store, runs fn against a fresh engine set, and commits the
// overlay plus buffered events only when fn succeeds.
func (s *Server) mutate(op string, fn func(*staking.Engine, *inventory.Engine, *claims.Ledger, *state.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, overlay := s.store.Stage()
	buffer := newEventBuffer()
	engine, allocator, ledger := s.engines(staged, buffer)
	if err := fn(engine, allocator, ledger, staged); err != nil {
		overlay.Close()
		s.metrics.ObserveOperation(op, err)
		return err
	}
	if err := overlay.Commit(); err != nil {
		s.metrics.ObserveOperation(op, err)
		return err
	}
	s.flushEvents(buffer)
	s.metrics.ObserveOperation(op, nil)
	s.refreshInventoryGauges()
	return nil
}

func (s *Server) refreshInventoryGauges() {
	allocator := inventory.NewEngine()
	allocator.SetState(s.store)
	allocator.SetRewardToken(s.store)
	status, err := allocator.Status()
	if err != nil {
		return
	}
	total, _ := new(big.Float).SetInt(status.TotalAvailable).Float64()
	s.metrics.SetInventory(total, status.PackageCount, status.OldestNonEmptyIdx)
}
