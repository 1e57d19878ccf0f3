package stakepool

import (
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promPoolState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "stakepool",
		Name:      "state",
		Help:      "lifecycle state of the pool (0 uninitialized, 1 active, 2 decommissioning, 3 closed)",
	}, []string{"pool"})
	promTotalLamports = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "stakepool",
		Name:      "total_lamports",
	}, []string{"pool"})
	promTokenSupply = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "stakepool",
		Name:      "token_supply",
	}, []string{"pool"})
	promValidators = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "stakepool",
		Name:      "validator_count",
	}, []string{"pool", "status"})
)

// observe updates the pool gauges. list may be nil when only pool fields changed.
func observe(poolAddr solana.PublicKey, pool *StakePool, list *ValidatorList) {
	key := poolAddr.String()
	promPoolState.WithLabelValues(key).Set(float64(pool.State))
	promTotalLamports.WithLabelValues(key).Set(float64(pool.TotalLamports))
	promTokenSupply.WithLabelValues(key).Set(float64(pool.PoolTokenSupply))
	if list == nil {
		return
	}
	counts := list.CountByStatus()
	for _, status := range []StakeStatus{StatusActive, StatusDeactivatingTransient, StatusReadyForRemoval} {
		promValidators.WithLabelValues(key, status.String()).Set(float64(counts[status]))
	}
}
