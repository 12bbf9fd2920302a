package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	exitFees        prometheus.Counter
	rewardsPaid     prometheus.Counter
	carryOverOwed   prometheus.Gauge
	totalAvailable  prometheus.Gauge
	packageCount    prometheus.Gauge
	oldestIndex     prometheus.Gauge
	partialFills    *prometheus.CounterVec
	merkleClaims    *prometheus.CounterVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_operations_total",
				Help: "Count of completed stake lifecycle operations by kind.",
			}, []string{"op"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_operation_errors_total",
				Help: "Count of rejected stake lifecycle operations by kind.",
			}, []string{"op"}),
			exitFees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_exit_fees_wei_total",
				Help: "Cumulative exit fees collected, in wei.",
			}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_rewards_paid_wei_total",
				Help: "Cumulative reward value disbursed, in wei.",
			}),
			carryOverOwed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_carry_over_wei",
				Help: "Reward value owed but not yet covered by inventory.",
			}),
			totalAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "inventory_total_available_wei",
				Help: "Reward value currently held across all packages.",
			}),
			packageCount: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "inventory_package_count",
				Help: "Number of reward packages ever deposited.",
			}),
			oldestIndex: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "inventory_oldest_package_index",
				Help: "Index of the oldest package the allocator still visits.",
			}),
			partialFills: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "inventory_partial_fills_total",
				Help: "Count of allocations that paid less than requested, by caller.",
			}, []string{"caller"}),
			merkleClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "claims_merkle_total",
				Help: "Count of settled Merkle claims by namespace.",
			}, []string{"namespace"}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.operationErrors,
			stakingRegistry.exitFees,
			stakingRegistry.rewardsPaid,
			stakingRegistry.carryOverOwed,
			stakingRegistry.totalAvailable,
			stakingRegistry.packageCount,
			stakingRegistry.oldestIndex,
			stakingRegistry.partialFills,
			stakingRegistry.merkleClaims,
		)
	})
	return stakingRegistry
}

func (m *StakingMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if err != nil {
		m.operationErrors.WithLabelValues(op).Inc()
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

func (m *StakingMetrics) AddExitFee(wei float64) {
	if m == nil || wei <= 0 {
		return
	}
	m.exitFees.Add(wei)
}

func (m *StakingMetrics) AddRewardsPaid(wei float64) {
	if m == nil || wei <= 0 {
		return
	}
	m.rewardsPaid.Add(wei)
}

func (m *StakingMetrics) SetCarryOver(wei float64) {
	if m == nil {
		return
	}
	m.carryOverOwed.Set(wei)
}

func (m *StakingMetrics) SetInventory(totalWei float64, packages, oldestIndex uint64) {
	if m == nil {
		return
	}
	m.totalAvailable.Set(totalWei)
	m.packageCount.Set(float64(packages))
	m.oldestIndex.Set(float64(oldestIndex))
}

func (m *StakingMetrics) IncPartialFill(caller string) {
	if m == nil {
		return
	}
	if caller == "" {
		caller = "unknown"
	}
	m.partialFills.WithLabelValues(caller).Inc()
}

func (m *StakingMetrics) IncMerkleClaim(namespace string) {
	if m == nil {
		return
	}
	if namespace == "" {
		namespace = "unknown"
	}
	m.merkleClaims.WithLabelValues(namespace).Inc()
}
