package stakingd

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"aurora/config"
	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/observability/logging"
	"aurora/services/stakingd/server"
	"aurora/state"
	"aurora/storage"
)

// defaultTargetFiat is 300 fiat units at 1e18 scale.
const defaultTargetFiat = "300000000000000000000"

// Main initialises and runs the staking ledger daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "stakingd.toml", "path to stakingd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup("stakingd", cfg.Env, &logging.RotationOptions{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	pool, err := cfg.Pool()
	if err != nil {
		return fmt.Errorf("pool address: %w", err)
	}

	var db storage.Database
	if strings.TrimSpace(cfg.DataDir) == "" {
		db = storage.NewMemDB()
		logger.Warn("no data directory configured, ledger is in-memory only")
	} else {
		leveldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			return fmt.Errorf("open ledger database: %w", err)
		}
		db = leveldb
	}
	defer db.Close()

	store := state.NewStore(db, pool)
	admins, err := cfg.AdminAddresses()
	if err != nil {
		return err
	}
	for _, admin := range admins {
		for _, role := range []string{staking.RoleAdmin, inventory.RoleAdmin, claims.RoleAdmin} {
			if err := store.GrantRole(role, admin); err != nil {
				return fmt.Errorf("grant %s: %w", role, err)
			}
		}
	}

	params, err := buildParams(cfg)
	if err != nil {
		return err
	}
	targetFiat, err := parseTargetFiat(cfg.CollateralTargetFiat)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Store:      store,
		Params:     params,
		MaxIDs:     cfg.MaxIDs,
		TargetFiat: targetFiat,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("stakingd listening", "address", cfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func buildParams(cfg *config.Config) (staking.Params, error) {
	params := staking.DefaultParams()
	if strings.TrimSpace(cfg.DailyRate) != "" {
		rate, ok := new(big.Int).SetString(strings.TrimSpace(cfg.DailyRate), 10)
		if !ok || rate.Sign() <= 0 {
			return params, fmt.Errorf("DailyRate %q is not a positive integer", cfg.DailyRate)
		}
		params.DailyRate = rate
	}
	if cfg.ClaimPeriodSeconds > 0 {
		params.ClaimPeriod = cfg.ClaimPeriodSeconds
	}
	tiers, err := cfg.TierTable()
	if err != nil {
		return params, err
	}
	params.TierBps = tiers
	fees, err := cfg.Fees()
	if err != nil {
		return params, err
	}
	params.FeeReceiver = fees
	return params, nil
}

func parseTargetFiat(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = defaultTargetFiat
	}
	target, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || target.Sign() <= 0 {
		return nil, fmt.Errorf("CollateralTargetFiat %q is not a positive integer", value)
	}
	return target, nil
}
