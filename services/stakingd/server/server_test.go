package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"aurora/native/claims"
	"aurora/native/inventory"
	"aurora/native/staking"
	"aurora/state"
	"aurora/storage"
)

const (
	adminAddr      = "0xadadadadadadadadadadadadadadadadadadadad"
	aliceAddr      = "0x1111111111111111111111111111111111111111"
	managerAddr    = "0x2222222222222222222222222222222222222222"
	collectionAddr = "0xc0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0"
	plotTierAddr   = "0x7777777777777777777777777777777777777777"
	feeAddr        = "0xfefefefefefefefefefefefefefefefefefefefe"
	poolAddr       = "0x0101010101010101010101010101010101010101"
)

type fixture struct {
	srv   *Server
	ts    *httptest.Server
	store *state.Store
	clock *atomic.Int64
}

func mustAddr(t *testing.T, value string) [20]byte {
	t.Helper()
	addr, err := parseAddr(value)
	require.NoError(t, err)
	return addr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := state.NewStore(storage.NewMemDB(), mustAddr(t, poolAddr))
	admin := mustAddr(t, adminAddr)
	for _, role := range []string{staking.RoleAdmin, inventory.RoleAdmin, claims.RoleAdmin} {
		require.NoError(t, store.GrantRole(role, admin))
	}

	params := staking.DefaultParams()
	params.DailyRate = big.NewInt(1000)
	params.TierBps[mustAddr(t, plotTierAddr)] = 10000
	params.FeeReceiver = mustAddr(t, feeAddr)

	clock := &atomic.Int64{}
	clock.Store(1_700_000_000)

	srv, err := New(Config{
		Store:      store,
		Params:     params,
		MaxIDs:     10,
		TargetFiat: big.NewInt(500),
		Now:        clock.Load,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	f := &fixture{srv: srv, ts: ts, store: store, clock: clock}

	// Publish a Q64.96 sqrt price of exactly 1.0 so one deposit unit is worth
	// one fiat unit and the required deposit equals the fiat target.
	sqrtOne := new(big.Int).Lsh(big.NewInt(1), 96)
	f.post(t, "/v1/admin/sqrt-price", map[string]any{
		"caller": adminAddr, "sqrtPriceX96": sqrtOne.String(),
	}, http.StatusOK)
	return f
}

func (f *fixture) request(t *testing.T, method, path string, body any, contentType string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	decoded := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (f *fixture) post(t *testing.T, path string, body any, wantStatus int) map[string]any {
	t.Helper()
	status, decoded := f.request(t, http.MethodPost, path, body, "application/json")
	require.Equal(t, wantStatus, status, "POST %s: %v", path, decoded)
	return decoded
}

func (f *fixture) get(t *testing.T, path string, wantStatus int) map[string]any {
	t.Helper()
	status, decoded := f.request(t, http.MethodGet, path, nil, "")
	require.Equal(t, wantStatus, status, "GET %s: %v", path, decoded)
	return decoded
}

func (f *fixture) seedAsset(t *testing.T, assetID uint64, owner string) {
	t.Helper()
	f.post(t, "/v1/admin/assets", map[string]any{
		"caller": adminAddr, "collection": collectionAddr, "assetId": assetID, "owner": owner,
	}, http.StatusOK)
}

func (f *fixture) seedPlot(t *testing.T, plotID uint64, owner string, capacity int) {
	t.Helper()
	f.post(t, "/v1/admin/plots", map[string]any{
		"caller": adminAddr, "plotId": plotID, "owner": owner, "capacity": capacity,
	}, http.StatusOK)
}

func (f *fixture) mintDeposit(t *testing.T, addr, amount string) {
	t.Helper()
	f.post(t, "/v1/admin/mint-deposit", map[string]any{
		"caller": adminAddr, "address": addr, "amount": amount,
	}, http.StatusOK)
}

func (f *fixture) seedInventory(t *testing.T, ids []uint64, totals []string) {
	t.Helper()
	f.post(t, "/v1/admin/roles/grant", map[string]any{
		"caller": adminAddr, "role": inventory.RoleManager, "address": managerAddr,
	}, http.StatusOK)
	f.post(t, "/v1/admin/mint-rewards", map[string]any{
		"caller": adminAddr, "address": managerAddr, "ids": ids, "amounts": totals,
	}, http.StatusOK)
	f.post(t, "/v1/inventory/deposit", map[string]any{
		"manager": managerAddr, "ids": ids, "amounts": totals,
	}, http.StatusOK)
}

func (f *fixture) balance(t *testing.T, addr string) *big.Int {
	t.Helper()
	balance, err := f.store.DepositBalance(mustAddr(t, addr))
	require.NoError(t, err)
	return balance
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	body := f.get(t, "/healthz", http.StatusOK)
	require.Equal(t, "ok", body["status"])
}

func TestLockPullsCollateralDeficit(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	f.mintDeposit(t, aliceAddr, "1000")

	f.post(t, "/v1/staking/lock", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
	}, http.StatusOK)

	require.Zero(t, f.balance(t, aliceAddr).Cmp(big.NewInt(500)))
	require.Zero(t, f.balance(t, poolAddr).Cmp(big.NewInt(500)))

	stake := f.get(t, fmt.Sprintf("/v1/staking/stakes/%s/7", collectionAddr), http.StatusOK)
	require.Equal(t, true, stake["locked"])
	require.Equal(t, "500", stake["lockedAmount"])
}

func TestLockRejectsNonOwner(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	f.mintDeposit(t, managerAddr, "1000")

	f.post(t, "/v1/staking/lock", map[string]any{
		"caller": managerAddr, "collection": collectionAddr, "assetId": 7,
	}, http.StatusForbidden)
}

func TestStakeClaimUnstakeLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	f.seedPlot(t, 3, aliceAddr, 1)
	f.mintDeposit(t, aliceAddr, "1000")
	f.seedInventory(t, []uint64{1, 2}, []string{"100000", "100000"})

	// Stake auto-locks the asset first.
	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
		"plotId": 3, "plotAddress": plotTierAddr,
	}, http.StatusOK)
	require.Zero(t, f.balance(t, aliceAddr).Cmp(big.NewInt(500)))

	// Claiming before a full accrual period is rejected.
	f.post(t, "/v1/staking/claim", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
	}, http.StatusConflict)

	// One day later the asset has accrued exactly one daily rate.
	f.clock.Add(86400)
	pending := f.get(t, fmt.Sprintf("/v1/staking/pending/%s/7", collectionAddr), http.StatusOK)
	require.Equal(t, "1000", pending["pending"])

	paid := f.post(t, "/v1/staking/claim", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
	}, http.StatusOK)
	require.Equal(t, "1000", paid["paid"])

	// Unstake with auto-unlock returns collateral minus the first-year fee.
	f.post(t, "/v1/staking/unstake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7, "autoUnlock": true,
	}, http.StatusOK)

	// 500 locked * 750 bps = 37 fee (integer division).
	require.Zero(t, f.balance(t, feeAddr).Cmp(big.NewInt(37)))
	// Alice holds her 500 remaining plus the 463 returned after the fee.
	require.Zero(t, f.balance(t, aliceAddr).Cmp(big.NewInt(963)))
	// The claimed reward sits in the reward ledger under the package's id.
	reward, err := f.store.RewardBalance(mustAddr(t, aliceAddr), 1)
	require.NoError(t, err)
	require.Zero(t, reward.Cmp(big.NewInt(1000)))

	stake := f.get(t, fmt.Sprintf("/v1/staking/stakes/%s/7", collectionAddr), http.StatusOK)
	require.Equal(t, false, stake["locked"])
	require.Equal(t, false, stake["staked"])

	// The freed plot can host another stake.
	f.seedAsset(t, 8, aliceAddr)
	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 8,
		"plotId": 3, "plotAddress": plotTierAddr,
	}, http.StatusOK)
}

func TestUnstakeShortfallLandsInCarryOver(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	f.seedPlot(t, 3, aliceAddr, 1)
	f.mintDeposit(t, aliceAddr, "1000")
	f.seedInventory(t, []uint64{1}, []string{"600"})

	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
		"plotId": 3, "plotAddress": plotTierAddr,
	}, http.StatusOK)

	// Accrue 1000 against only 600 of inventory.
	f.clock.Add(86400)
	f.post(t, "/v1/staking/unstake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
	}, http.StatusOK)

	carry := f.get(t, "/v1/staking/carry-over/"+aliceAddr, http.StatusOK)
	require.Equal(t, "400", carry["carryOver"])

	// A later claim drains the carry-over once inventory is refilled. The
	// asset must be staked again for the claim surface to accept it.
	f.seedInventory(t, []uint64{9}, []string{"5000"})
	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
		"plotId": 3, "plotAddress": plotTierAddr,
	}, http.StatusOK)
	paid := f.post(t, "/v1/staking/claim", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
	}, http.StatusOK)
	require.Equal(t, "400", paid["paid"])
	carry = f.get(t, "/v1/staking/carry-over/"+aliceAddr, http.StatusOK)
	require.Equal(t, "0", carry["carryOver"])
}

func TestBatchLockIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	// Asset 8 belongs to someone else, so the second item fails.
	f.seedAsset(t, 8, managerAddr)
	f.mintDeposit(t, aliceAddr, "5000")

	f.post(t, "/v1/staking/lock-batch", map[string]any{
		"caller":      aliceAddr,
		"collections": []string{collectionAddr, collectionAddr},
		"assetIds":    []uint64{7, 8},
	}, http.StatusForbidden)

	// The first item's writes were rolled back with the batch.
	require.Zero(t, f.balance(t, aliceAddr).Cmp(big.NewInt(5000)))
	f.get(t, fmt.Sprintf("/v1/staking/stakes/%s/7", collectionAddr), http.StatusNotFound)

	// Mismatched arrays fail before any item runs.
	f.post(t, "/v1/staking/lock-batch", map[string]any{
		"caller":      aliceAddr,
		"collections": []string{collectionAddr},
		"assetIds":    []uint64{7, 8},
	}, http.StatusBadRequest)
}

func TestDepositManifestYAML(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/v1/admin/roles/grant", map[string]any{
		"caller": adminAddr, "role": inventory.RoleManager, "address": managerAddr,
	}, http.StatusOK)
	f.post(t, "/v1/admin/mint-rewards", map[string]any{
		"caller": adminAddr, "address": managerAddr, "ids": []uint64{5, 6}, "amounts": []string{"70", "30"},
	}, http.StatusOK)

	manifest := strings.Join([]string{
		"manager: " + managerAddr,
		"entries:",
		"  - id: 5",
		"    amount: \"70\"",
		"  - id: 6",
		"    amount: \"30\"",
	}, "\n")
	status, body := f.request(t, http.MethodPost, "/v1/inventory/deposit-manifest", manifest, "application/yaml")
	require.Equal(t, http.StatusOK, status, "%v", body)

	inv := f.get(t, "/v1/inventory/status", http.StatusOK)
	require.Equal(t, "100", inv["totalAvailable"])
	require.Equal(t, float64(1), inv["packageCount"])
}

func TestDepositRequiresManagerRole(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/v1/inventory/deposit", map[string]any{
		"manager": managerAddr, "ids": []uint64{1}, "amounts": []string{"10"},
	}, http.StatusForbidden)
}

func hashPair(a, b [32]byte) [32]byte {
	var out [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(out[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return out
}

func TestMerkleClaimOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.seedInventory(t, []uint64{1}, []string{"1000"})

	alice := mustAddr(t, aliceAddr)
	other := mustAddr(t, managerAddr)
	leafA := claims.StakingPoolLeaf(alice, big.NewInt(400))
	leafB := claims.StakingPoolLeaf(other, big.NewInt(100))
	root := hashPair(leafA, leafB)

	f.post(t, "/v1/admin/merkle-root", map[string]any{
		"caller":    adminAddr,
		"namespace": claims.NamespaceStakingPool,
		"root":      fmt.Sprintf("0x%x", root),
	}, http.StatusOK)

	paid := f.post(t, "/v1/claims/staking-pool", map[string]any{
		"caller": aliceAddr,
		"amount": "400",
		"proof":  []string{fmt.Sprintf("0x%x", leafB)},
	}, http.StatusOK)
	require.Equal(t, "400", paid["paid"])

	// Replays are rejected and roll back nothing.
	f.post(t, "/v1/claims/staking-pool", map[string]any{
		"caller": aliceAddr,
		"amount": "400",
		"proof":  []string{fmt.Sprintf("0x%x", leafB)},
	}, http.StatusConflict)

	// A bad proof is a 400.
	f.post(t, "/v1/claims/staking-pool", map[string]any{
		"caller": managerAddr,
		"amount": "100",
		"proof":  []string{fmt.Sprintf("0x%x", leafB)},
	}, http.StatusBadRequest)
}

func TestAdminSurfaceRequiresRole(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/v1/admin/mint-deposit", map[string]any{
		"caller": aliceAddr, "address": aliceAddr, "amount": "100",
	}, http.StatusForbidden)
	f.post(t, "/v1/admin/plots", map[string]any{
		"caller": aliceAddr, "plotId": 1, "owner": aliceAddr, "capacity": 5,
	}, http.StatusForbidden)
	f.post(t, "/v1/admin/max-ids", map[string]any{
		"caller": aliceAddr, "maxIds": 5,
	}, http.StatusForbidden)
	f.post(t, "/v1/admin/merkle-root", map[string]any{
		"caller": aliceAddr, "namespace": claims.NamespaceStakingPool,
		"root": "0x" + strings.Repeat("00", 32),
	}, http.StatusForbidden)
}

func TestTierAdministration(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	f.seedPlot(t, 3, aliceAddr, 1)
	f.mintDeposit(t, aliceAddr, "1000")

	// Staking onto an unrecognized tier address fails.
	unknownTier := "0x9999999999999999999999999999999999999999"
	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
		"plotId": 3, "plotAddress": unknownTier,
	}, http.StatusBadRequest)

	// Registering the tier makes the same call succeed.
	f.post(t, "/v1/admin/tiers", map[string]any{
		"caller": adminAddr, "plotAddress": unknownTier, "bps": 8000,
	}, http.StatusOK)
	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
		"plotId": 3, "plotAddress": unknownTier,
	}, http.StatusOK)

	// The 8000 bps multiplier scales accrual to 800 per day.
	f.clock.Add(86400)
	pending := f.get(t, fmt.Sprintf("/v1/staking/pending/%s/7", collectionAddr), http.StatusOK)
	require.Equal(t, "800", pending["pending"])
}

func TestCollateralEndpoint(t *testing.T) {
	f := newFixture(t)
	body := f.get(t, "/v1/staking/collateral", http.StatusOK)
	require.Equal(t, "1000000000000000000", body["spotPrice"])
	require.Equal(t, "500", body["requiredDeposit"])
	require.Equal(t, "500", body["targetFiat"])
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPerRequestEnginesSnapshotTierTable(t *testing.T) {
	f := newFixture(t)
	plot := mustAddr(t, plotTierAddr)

	f.srv.mu.RLock()
	engine, _, _ := f.srv.engines(f.srv.store, newEventBuffer())
	f.srv.mu.RUnlock()

	// A retune on one request's engine must not reach the server copy that
	// other requests read from.
	require.NoError(t, engine.SetTierBps(mustAddr(t, adminAddr), plot, 1234))

	f.srv.mu.RLock()
	bps := f.srv.params.TierBps[plot]
	f.srv.mu.RUnlock()
	require.Equal(t, uint64(10000), bps)
}

func TestConcurrentTierRetuneAndPendingReads(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, 7, aliceAddr)
	f.seedPlot(t, 3, aliceAddr, 1)
	f.mintDeposit(t, aliceAddr, "1000")
	f.post(t, "/v1/staking/stake", map[string]any{
		"caller": aliceAddr, "collection": collectionAddr, "assetId": 7,
		"plotId": 3, "plotAddress": plotTierAddr,
	}, http.StatusOK)
	f.clock.Add(3600)

	tierBody, err := json.Marshal(map[string]any{
		"caller": adminAddr, "plotAddress": plotTierAddr, "bps": 9000,
	})
	require.NoError(t, err)
	pendingURL := f.ts.URL + fmt.Sprintf("/v1/staking/pending/%s/7", collectionAddr)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			resp, err := http.Post(f.ts.URL+"/v1/admin/tiers", "application/json", bytes.NewReader(tierBody))
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("set tier status %d", resp.StatusCode)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			resp, err := http.Get(pendingURL)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("pending status %d", resp.StatusCode)
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
